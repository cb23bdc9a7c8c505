// Package config loads service parameters from flags and SCHOOLGATE_* env vars.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/stevenroose/gonfig"
)

const EnvPrefix = "SCHOOLGATE_"

type Params struct {
	Address  string `id:"address" short:"a" default:"0.0.0.0:8080" desc:"Listening address"`
	LogLevel string `id:"log-level" default:"info" desc:"Optional values: trace, debug, info, warn or error"`

	RedisAddr      string `id:"redis-addr" desc:"Redis address; verification records stay in memory when empty"`
	RedisKeyPrefix string `id:"redis-key-prefix" default:"otp:"`

	CodeTTL     string `id:"code-ttl" default:"5m" desc:"How long an issued code stays valid"`
	Retention   string `id:"retention" default:"10m" desc:"How long an expired record is kept to answer late submissions"`
	MaxAttempts int    `id:"max-attempts" default:"5"`
	CodeLength  int    `id:"code-length" default:"6"`
	OpTimeout   string `id:"op-timeout" default:"10s" desc:"Deadline for an issue or verify without a caller deadline"`
	RateLimit   int    `id:"rate-limit" default:"5" desc:"Codes per recipient per rate window; 0 disables"`
	RateWindow  string `id:"rate-window" default:"1h"`

	HMACSecret string `id:"hmac-secret" desc:"Secret used to digest stored codes"`
	JWTSecret  string `id:"jwt-secret" desc:"Secret used to sign add-school grants"`
	GrantTTL   string `id:"grant-ttl" default:"10m"`

	Delivery        string `id:"delivery" default:"log" desc:"Optional values: log, sendgrid, smtp, twilio"`
	OrgName         string `id:"org-name" default:"School Directory"`
	SendGridKey     string `id:"sendgrid-key"`
	SendGridFrom    string `id:"sendgrid-from"`
	SendGridSandbox bool   `id:"sendgrid-sandbox"`
	SMTPHost        string `id:"smtp-host"`
	SMTPPort        int    `id:"smtp-port" default:"587"`
	SMTPUser        string `id:"smtp-user"`
	SMTPPassword    string `id:"smtp-password"`
	SMTPFrom        string `id:"smtp-from"`
	TwilioSID       string `id:"twilio-sid"`
	TwilioToken     string `id:"twilio-token"`
	TwilioFrom      string `id:"twilio-from"`

	SchoolStore string `id:"school-store" default:"memory" desc:"Optional values: memory, bolt, postgres"`
	BoltPath    string `id:"bolt-path" default:"schools.db"`
	PostgresDSN string `id:"postgres-dsn"`

	ImageDir     string `id:"image-dir" default:"images"`
	ImageBaseURL string `id:"image-base-url" default:"/images"`
	ImageMaxSize int64  `id:"image-max-size" default:"5242880"`

	CORSOrigins   string `id:"cors-origins" default:"*" desc:"Comma separated list of allowed origins"`
	SweepSchedule string `id:"sweep-schedule" default:"@every 1m"`
	GateIdleTTL   string `id:"gate-idle-ttl" default:"30m" desc:"Gates untouched this long are dropped"`
}

// Load reads flags and environment. Files are not consulted.
func Load() (*Params, error) {
	return load(gonfig.Conf{
		FileDisable:       true,
		FlagIgnoreUnknown: false,
		EnvPrefix:         EnvPrefix,
	})
}

func load(conf gonfig.Conf) (*Params, error) {
	var p Params
	if err := gonfig.Load(&p, conf); err != nil {
		return nil, err
	}
	return &p, nil
}

// Policy is the parsed, validated form of Params.
type Policy struct {
	CodeTTL     time.Duration
	Retention   time.Duration
	OpTimeout   time.Duration
	RateWindow  time.Duration
	GrantTTL    time.Duration
	GateIdleTTL time.Duration
}

func (p *Params) Policy() (Policy, error) {
	var pol Policy
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"code-ttl", p.CodeTTL, &pol.CodeTTL},
		{"retention", p.Retention, &pol.Retention},
		{"op-timeout", p.OpTimeout, &pol.OpTimeout},
		{"rate-window", p.RateWindow, &pol.RateWindow},
		{"grant-ttl", p.GrantTTL, &pol.GrantTTL},
		{"gate-idle-ttl", p.GateIdleTTL, &pol.GateIdleTTL},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return Policy{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if d <= 0 {
			return Policy{}, fmt.Errorf("%s must be positive", f.name)
		}
		*f.dst = d
	}
	return pol, nil
}

// Validate checks the settings that have no usable default.
func (p *Params) Validate() error {
	if p.HMACSecret == "" {
		return fmt.Errorf("hmac-secret is required")
	}
	if p.JWTSecret == "" {
		return fmt.Errorf("jwt-secret is required")
	}
	if p.MaxAttempts <= 0 || p.CodeLength < 4 {
		return fmt.Errorf("max-attempts must be positive and code-length at least 4")
	}
	switch p.Delivery {
	case "log":
	case "sendgrid":
		if p.SendGridKey == "" || p.SendGridFrom == "" {
			return fmt.Errorf("sendgrid delivery needs sendgrid-key and sendgrid-from")
		}
	case "smtp":
		if p.SMTPHost == "" || p.SMTPFrom == "" {
			return fmt.Errorf("smtp delivery needs smtp-host and smtp-from")
		}
	case "twilio":
		if p.TwilioSID == "" || p.TwilioToken == "" || p.TwilioFrom == "" {
			return fmt.Errorf("twilio delivery needs twilio-sid, twilio-token and twilio-from")
		}
	default:
		return fmt.Errorf("unknown delivery %q", p.Delivery)
	}
	switch p.SchoolStore {
	case "memory", "bolt":
	case "postgres":
		if p.PostgresDSN == "" {
			return fmt.Errorf("postgres school store needs postgres-dsn")
		}
	default:
		return fmt.Errorf("unknown school store %q", p.SchoolStore)
	}
	_, err := p.Policy()
	return err
}

// Origins splits CORSOrigins.
func (p *Params) Origins() []string {
	var out []string
	for _, o := range strings.Split(p.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
