package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ActionAddSchool = "add_school"

var (
	ErrInvalidGrant = errors.New("invalid grant")
	ErrGrantUsed    = errors.New("grant already used")
)

type contextKey string

const grantKey contextKey = "grant"

// GrantClaims authorize one protected action for the verified recipient.
type GrantClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// Grants mints and checks the short-lived tokens handed out when a gate
// unlocks. Each token is accepted by Redeem once.
type Grants struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used map[string]time.Time
}

func NewGrants(secret string, ttl time.Duration) *Grants {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Grants{
		secret: []byte(secret),
		method: jwt.SigningMethodHS256,
		ttl:    ttl,
		now:    time.Now,
		used:   make(map[string]time.Time),
	}
}

func (g *Grants) Mint(recipient, action string) (string, time.Time, error) {
	now := g.now()
	exp := now.Add(g.ttl)
	claims := GrantClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   recipient,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(g.method, claims).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (g *Grants) Parse(raw, action string) (*GrantClaims, error) {
	var claims GrantClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	}, jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidGrant
	}
	if claims.Subject == "" || claims.ID == "" || claims.Action != action {
		return nil, ErrInvalidGrant
	}
	return &claims, nil
}

// Redeem marks the grant as spent.
func (g *Grants) Redeem(c *GrantClaims) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.used[c.ID]; ok {
		return ErrGrantUsed
	}
	exp := g.now().Add(g.ttl)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	g.used[c.ID] = exp
	return nil
}

// Restore hands a redeemed grant back when the protected action did not
// happen, so the holder can retry without unlocking a new gate.
func (g *Grants) Restore(c *GrantClaims) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.used, c.ID)
}

// Sweep forgets spent grants that would be rejected as expired anyway.
func (g *Grants) Sweep() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for id, exp := range g.used {
		if now.After(exp) {
			delete(g.used, id)
			n++
		}
	}
	return n
}

func requireGrant(grants *Grants, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing bearer token", nil, nil)
				return
			}
			claims, err := grants.Parse(strings.TrimSpace(auth[7:]), action)
			if err != nil {
				respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token", nil, err)
				return
			}
			ctx := context.WithValue(r.Context(), grantKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func grantFrom(ctx context.Context) *GrantClaims {
	c, _ := ctx.Value(grantKey).(*GrantClaims)
	return c
}
