// Package auth issues and checks session tokens for the single allowed
// identity, and drives the Google sign-in flow.
package auth

import (
	"captains-log/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	DefaultTokenTTL   = 30 * 24 * time.Hour
	issuer            = "captains-log"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrForbidden       = errors.New("identity is not allowed")
)

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type UserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type Manager struct {
	secret       []byte
	ttl          time.Duration
	allowedEmail string
	oauth        *oauth2.Config
	userInfoURL  string
	clock        func() time.Time
}

type Option func(*Manager)

// WithEndpoint points the OAuth flow at another provider.
func WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) Option {
	return func(m *Manager) {
		m.oauth.Endpoint = endpoint
		m.userInfoURL = userInfoURL
	}
}

func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

func NewManager(cfg config.Auth, opts ...Option) *Manager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	m := &Manager{
		secret:       []byte(cfg.Secret),
		ttl:          ttl,
		allowedEmail: cfg.AllowedEmail,
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: GoogleUserInfoURL,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allowed reports whether email is the identity permitted to sign in.
func (m *Manager) Allowed(email string) bool {
	return m.allowedEmail != "" && strings.EqualFold(strings.TrimSpace(email), m.allowedEmail)
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session token for email.
func (m *Manager) Issue(email, name string) (string, error) {
	now := m.clock()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse validates a session token. Tokens for any identity other than the
// allowed one fail with ErrForbidden.
func (m *Manager) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		return nil, errors.Join(ErrUnauthenticated, err)
	}
	if !m.Allowed(claims.Email) {
		return nil, ErrForbidden
	}
	return claims, nil
}

func (m *Manager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the signed-in user's profile.
func (m *Manager) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}
