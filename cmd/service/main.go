package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/tunaaoguzhann/schoolgate/api"
	"github.com/tunaaoguzhann/schoolgate/config"
	"github.com/tunaaoguzhann/schoolgate/core"
	"github.com/tunaaoguzhann/schoolgate/delivery"
	"github.com/tunaaoguzhann/schoolgate/directory"
	"github.com/tunaaoguzhann/schoolgate/logging"
)

const appName = "schoolgate"

func main() {
	params, err := config.Load()
	if err != nil {
		logging.Logger.WithError(err).Fatal("Failed to load config")
	}
	logging.InitLogger(appName, params.LogLevel)
	if err := params.Validate(); err != nil {
		logging.Logger.WithError(err).Fatal("Invalid config")
	}
	pol, err := params.Policy()
	if err != nil {
		logging.Logger.WithError(err).Fatal("Invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := buildRedis(ctx, params)
	manager, err := core.NewManagerWithOptions(core.ManagerOptions{
		Redis:          rdb,
		RedisKeyPrefix: params.RedisKeyPrefix,
		Secret:         params.HMACSecret,
		TTL:            pol.CodeTTL,
		Retention:      pol.Retention,
		MaxAttempts:    params.MaxAttempts,
		CodeLength:     params.CodeLength,
		OpTimeout:      pol.OpTimeout,
		RateLimit:      params.RateLimit,
		RateWindow:     pol.RateWindow,
	})
	if err != nil {
		logging.Logger.WithError(err).Fatal("Failed to init verification manager")
	}

	channel, err := buildChannel(params, pol)
	if err != nil {
		logging.Logger.WithError(err).Fatal("Failed to init delivery channel")
	}

	schools, err := buildSchoolStore(ctx, params)
	if err != nil {
		logging.Logger.WithError(err).Fatal("Failed to open school store")
	}
	defer schools.Close()

	images, err := directory.NewFSImageStore(params.ImageDir, params.ImageBaseURL, params.ImageMaxSize)
	if err != nil {
		logging.Logger.WithError(err).Fatal("Failed to init image store")
	}

	grants := api.NewGrants(params.JWTSecret, pol.GrantTTL)
	server := api.NewServer(api.Options{
		Authority:  manager,
		Channel:    channel,
		CodeLength: manager.CodeLength(),
		Grants:     grants,
		Registry:   directory.NewRegistry(schools, images),
		ImageDir:   images.Root(),
		MaxUpload:  params.ImageMaxSize,
	})

	c := cron.New()
	_, err = c.AddFunc(params.SweepSchedule, func() {
		n, err := manager.Sweep(context.Background())
		if err != nil {
			logging.Logger.WithError(err).Error("Scheduled verification sweep failed")
		}
		gates := server.Gates().Sweep(pol.GateIdleTTL)
		spent := grants.Sweep()
		logging.Logger.Debugf("Sweep removed %d verifications, %d gates, %d spent grants", n, gates, spent)
	})
	if err != nil {
		logging.Logger.WithError(err).Fatal("Failed to schedule sweep job")
	}
	c.Start()
	defer c.Stop()

	co := cors.New(cors.Options{
		AllowedOrigins: params.Origins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	srv := &http.Server{
		Addr:              params.Address,
		Handler:           co.Handler(server.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Logger.Infof("Starting %s on %s (delivery=%s, schools=%s, redis=%v)",
		appName, params.Address, params.Delivery, params.SchoolStore, rdb != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger.Fatal("Failed to start server: ", err)
	}
}

func buildRedis(ctx context.Context, params *config.Params) *redis.Client {
	if params.RedisAddr == "" {
		logging.Logger.Info("Using in-memory verification store")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: params.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logging.Logger.WithError(err).Fatal("Redis ping failed")
	}
	logging.Logger.Infof("Using redis verification store at %s", params.RedisAddr)
	return client
}

func buildChannel(params *config.Params, pol config.Policy) (core.Channel, error) {
	switch params.Delivery {
	case "sendgrid":
		return newSendGrid(params, pol)
	case "smtp":
		return newSMTP(params, pol)
	case "twilio":
		sms, err := delivery.NewTwilio(delivery.TwilioConfig{
			AccountSID: params.TwilioSID,
			AuthToken:  params.TwilioToken,
			FromPhone:  params.TwilioFrom,
			OrgName:    params.OrgName,
		})
		if err != nil {
			return nil, err
		}
		email, err := buildEmailChannel(params, pol)
		if err != nil {
			return nil, err
		}
		if email == nil {
			logging.Logger.Warn("No email provider configured; email recipients will be refused")
		}
		return delivery.ByAddress{SMS: sms, Email: email}, nil
	default:
		logging.Logger.Warn("Using log delivery; codes are only visible at debug level")
		return core.LogChannel{}, nil
	}
}

// buildEmailChannel returns the email provider that sits next to SMS delivery,
// or nil when neither SendGrid nor SMTP is configured.
func buildEmailChannel(params *config.Params, pol config.Policy) (core.Channel, error) {
	switch {
	case params.SendGridKey != "" && params.SendGridFrom != "":
		return newSendGrid(params, pol)
	case params.SMTPHost != "" && params.SMTPFrom != "":
		return newSMTP(params, pol)
	default:
		return nil, nil
	}
}

func newSendGrid(params *config.Params, pol config.Policy) (core.Channel, error) {
	sg, err := delivery.NewSendGrid(delivery.SendGridConfig{
		APIKey:      params.SendGridKey,
		FromName:    params.OrgName,
		FromAddress: params.SendGridFrom,
		Sandbox:     params.SendGridSandbox,
		CodeTTL:     pol.CodeTTL,
	})
	if err != nil {
		return nil, err
	}
	return sg, nil
}

func newSMTP(params *config.Params, pol config.Policy) (core.Channel, error) {
	m, err := delivery.NewSMTP(delivery.SMTPConfig{
		Host:     params.SMTPHost,
		Port:     params.SMTPPort,
		User:     params.SMTPUser,
		Password: params.SMTPPassword,
		From:     params.SMTPFrom,
		OrgName:  params.OrgName,
		CodeTTL:  pol.CodeTTL,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func buildSchoolStore(ctx context.Context, params *config.Params) (directory.Store, error) {
	switch params.SchoolStore {
	case "bolt":
		return directory.OpenBoltStore(params.BoltPath)
	case "postgres":
		return directory.OpenPostgresStore(ctx, params.PostgresDSN)
	default:
		return directory.NewMemoryStore(), nil
	}
}
