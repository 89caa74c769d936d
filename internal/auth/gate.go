package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"thumbforge-client/internal/model"
	"thumbforge-client/internal/storage"
	"thumbforge-client/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Signer exchanges credentials for a token. An empty token with a nil error
// means the server answered without one.
type Signer interface {
	SignIn(ctx context.Context, username, password string) (string, error)
}

// Gate derives the authenticated status from the profile. It is the only
// writer of storage.KeyAuth.
type Gate struct {
	store  storage.Storage
	signer Signer
	now    func() time.Time

	sub  *storage.Subscription
	done chan struct{}

	mu        sync.Mutex
	listeners []func(authenticated bool)
}

func NewGate(store storage.Storage, signer Signer) *Gate {
	g := &Gate{
		store:  store,
		signer: signer,
		now:    time.Now,
		sub:    store.Subscribe(),
		done:   make(chan struct{}),
	}
	go g.watch()
	return g
}

func (g *Gate) watch() {
	defer close(g.done)
	for c := range g.sub.C() {
		if c.Key != storage.KeyAuth {
			continue
		}
		g.mu.Lock()
		listeners := append([]func(bool){}, g.listeners...)
		g.mu.Unlock()
		for _, fn := range listeners {
			fn(c.Present)
		}
	}
}

// OnChange registers fn to run whenever the auth entry is written or cleared,
// from this process or another one sharing the profile.
func (g *Gate) OnChange(fn func(authenticated bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// IsAuthenticated reports whether an auth entry exists. The token is not
// inspected.
func (g *Gate) IsAuthenticated() bool {
	_, ok, err := g.store.Get(storage.KeyAuth)
	if err != nil {
		logger.Warnf("reading auth entry: %v", err)
		return false
	}
	return ok
}

func (g *Gate) SignIn(ctx context.Context, username, password string) (*model.AuthSession, error) {
	log := logger.WithFields(logrus.Fields{"username": username})

	token, err := g.signer.SignIn(ctx, username, password)
	if err != nil {
		log.Warnf("sign-in failed: %v", err)
		return nil, ErrInvalidCredentials
	}
	if token == "" {
		log.Warn("sign-in response carried no token")
		return nil, ErrInvalidResponse
	}

	session := &model.AuthSession{
		Username: username,
		IssuedAt: g.now().UnixMilli(),
		Token:    token,
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encoding auth entry: %w", err)
	}
	if err := g.store.Set(storage.KeyAuth, string(data)); err != nil {
		return nil, fmt.Errorf("storing auth entry: %w", err)
	}

	log.Info("signed in")
	return session, nil
}

func (g *Gate) SignOut() error {
	return g.store.Clear(storage.KeyAuth)
}

// Session decodes the stored entry. A present but unreadable entry still
// counts as authenticated for IsAuthenticated; Session then reports false.
func (g *Gate) Session() (*model.AuthSession, bool) {
	raw, ok, err := g.store.Get(storage.KeyAuth)
	if err != nil || !ok {
		return nil, false
	}
	var session model.AuthSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, false
	}
	return &session, true
}

type TokenClaims struct {
	Subject   string     `json:"subject,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Claims decodes the registered claims of a JWT token without verifying its
// signature. The result is informational and never used for gating.
func (g *Gate) Claims() (*TokenClaims, error) {
	session, ok := g.Session()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(session.Token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	out := &TokenClaims{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		out.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		out.ExpiresAt = &t
	}
	return out, nil
}

func (g *Gate) Close() {
	g.sub.Close()
	<-g.done
}
