// Package httpapi implements the hosted.Client handle against the service's
// HTTP surface: the auth endpoints for sessions and credentials, and the REST
// table endpoints behind a small query builder.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hosted"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

const (
	defaultAuthPath = "/auth/v1"
	defaultRestPath = "/rest/v1"
	defaultJWKSPath = "/auth/v1/.well-known/jwks.json"

	defaultPhoneRegion = "US"
)

// TokenStore persists the session token bundle between calls. The default is
// in-memory; applications wanting sessions to survive restarts supply their
// own.
type TokenStore interface {
	Load(ctx context.Context) (*hosted.Session, error)
	Save(ctx context.Context, session *hosted.Session) error
	Clear(ctx context.Context) error
}

// Config configures the HTTP client handle.
type Config struct {
	hosted.Config

	// AuthPath, RestPath and JWKSPath override the endpoint prefixes, mostly
	// for tests pointing at a local server.
	AuthPath string
	RestPath string
	JWKSPath string

	HTTPClient *http.Client
	TokenStore TokenStore
	Logger     hosted.Logger

	// VerifyTokens enables local signature verification of service-issued
	// JWTs against the service JWKS endpoint. Off by default: the service is
	// the source of truth and tokens are only decoded for identity/expiry.
	VerifyTokens bool

	// PhoneRegion is the default region used to normalize phone numbers that
	// arrive without a country prefix.
	PhoneRegion string
}

// Client is the HTTP implementation of hosted.Client.
type Client struct {
	config      hosted.Config
	configured  bool
	authURL     string
	restURL     string
	httpClient  *http.Client
	tokens      TokenStore
	logger      hosted.Logger
	verifier    *tokenVerifier
	phoneRegion string

	mu       sync.Mutex
	handlers map[int]hosted.AuthChangeHandler
	nextID   int
}

var _ hosted.Client = (*Client)(nil)

// New builds the client handle. An unconfigured or placeholder Config is not
// an error: the handle comes up in placeholder mode, where every remote call
// returns hosted.ErrNotConfigured.
func New(cfg Config) (*Client, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid hosted config")
	}

	if cfg.AuthPath == "" {
		cfg.AuthPath = defaultAuthPath
	}
	if cfg.RestPath == "" {
		cfg.RestPath = defaultRestPath
	}
	if cfg.JWKSPath == "" {
		cfg.JWKSPath = defaultJWKSPath
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.TokenStore == nil {
		cfg.TokenStore = NewMemoryTokenStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = defaultPhoneRegion
	}

	base := strings.TrimRight(cfg.ServiceURL, "/")

	c := &Client{
		config:      cfg.Config,
		configured:  cfg.Config.Configured(),
		authURL:     base + cfg.AuthPath,
		restURL:     base + cfg.RestPath,
		httpClient:  cfg.HTTPClient,
		tokens:      cfg.TokenStore,
		logger:      cfg.Logger,
		phoneRegion: cfg.PhoneRegion,
		handlers:    map[int]hosted.AuthChangeHandler{},
	}

	if cfg.VerifyTokens && c.configured {
		verifier, err := newTokenVerifier(base+cfg.JWKSPath, cfg.Logger)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to initialize JWKS verifier")
		}
		c.verifier = verifier
	}

	return c, nil
}

// Configured reports whether the handle has real connection settings.
func (c *Client) Configured() bool {
	return c.configured
}

// GetSession returns the persisted session, refreshing it through the service
// when the access token has expired. (nil, nil) means "no session".
func (c *Client) GetSession(ctx context.Context) (*hosted.Session, error) {
	if !c.configured {
		return nil, hosted.ErrNotConfigured
	}

	session, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load stored session")
	}
	if session == nil {
		return nil, nil
	}

	if session.Expired(time.Now()) {
		if session.RefreshToken == "" {
			_ = c.tokens.Clear(ctx)
			return nil, nil
		}
		return c.refresh(ctx, session.RefreshToken)
	}

	if session.User == nil {
		if user, _, err := c.userFromToken(session.AccessToken); err == nil {
			session.User = user
		}
	}

	return session, nil
}

// OnAuthStateChange registers a handler for auth events emitted by this
// handle (sign in/out, token refresh).
func (c *Client) OnAuthStateChange(fn hosted.AuthChangeHandler) (hosted.Subscription, error) {
	if fn == nil {
		return nil, goerrors.New("auth change handler is required", goerrors.CategoryBadInput)
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()

	return subscription{cancel: func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}}, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	if !c.configured {
		return hosted.ErrNotConfigured
	}

	body := map[string]string{"email": email, "password": password}
	var env sessionEnvelope
	if err := c.post(ctx, c.authURL+"/token?grant_type=password", body, "", &env); err != nil {
		return err
	}

	session := c.sessionFromEnvelope(env)
	if err := c.tokens.Save(ctx, session); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist session")
	}

	c.emit(hosted.AuthEvent{Kind: hosted.AuthEventSignedIn, Session: session})
	return nil
}

func (c *Client) SignUp(ctx context.Context, payload hosted.SignUpPayload) error {
	if !c.configured {
		return hosted.ErrNotConfigured
	}

	if payload.Phone != "" {
		normalized, err := c.normalizePhone(payload.Phone)
		if err != nil {
			return err
		}
		payload.Phone = normalized
	}

	body := map[string]any{
		"email":    payload.Email,
		"password": payload.Password,
	}
	if payload.Phone != "" {
		body["phone"] = payload.Phone
	}
	if payload.FullName != "" {
		body["data"] = map[string]any{"full_name": payload.FullName}
	}

	var env sessionEnvelope
	if err := c.post(ctx, c.authURL+"/signup", body, "", &env); err != nil {
		return err
	}

	// services requiring email confirmation answer without tokens; there is
	// no session to persist until the user confirms
	if env.AccessToken == "" {
		return nil
	}

	session := c.sessionFromEnvelope(env)
	if err := c.tokens.Save(ctx, session); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist session")
	}

	c.emit(hosted.AuthEvent{Kind: hosted.AuthEventSignedIn, Session: session})
	return nil
}

// SignInWithOAuth builds the service authorize URL for the redirect flow. No
// network call happens here; the session arrives later through the redirect.
func (c *Client) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	if !c.configured {
		return "", hosted.ErrNotConfigured
	}
	if provider == "" {
		return "", goerrors.New("oauth provider is required", goerrors.CategoryBadInput)
	}

	params := url.Values{"provider": {provider}}
	if redirectTo != "" {
		params.Set("redirect_to", redirectTo)
	}

	return c.authURL + "/authorize?" + params.Encode(), nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if !c.configured {
		return hosted.ErrNotConfigured
	}

	session, _ := c.tokens.Load(ctx)

	var remoteErr error
	if session != nil && session.AccessToken != "" {
		remoteErr = c.post(ctx, c.authURL+"/logout", nil, session.AccessToken, nil)
	}

	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear stored session: %v", err)
	}

	c.emit(hosted.AuthEvent{Kind: hosted.AuthEventSignedOut, Session: nil})
	return remoteErr
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if !c.configured {
		return hosted.ErrNotConfigured
	}

	endpoint := c.authURL + "/recover"
	if redirectTo != "" {
		endpoint += "?" + url.Values{"redirect_to": {redirectTo}}.Encode()
	}

	return c.post(ctx, endpoint, map[string]string{"email": email}, "", nil)
}

// From opens a query against a REST table.
func (c *Client) From(table string) hosted.QueryBuilder {
	q := &query{client: c, table: table}
	if !c.configured {
		q.err = hosted.ErrNotConfigured
	}
	return q
}

// --- internals ---

func (c *Client) refresh(ctx context.Context, refreshToken string) (*hosted.Session, error) {
	var env sessionEnvelope
	err := c.post(ctx, c.authURL+"/token?grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	}, "", &env)
	if err != nil {
		return nil, err
	}

	session := c.sessionFromEnvelope(env)
	if err := c.tokens.Save(ctx, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist refreshed session")
	}

	c.emit(hosted.AuthEvent{Kind: hosted.AuthEventTokenRefreshed, Session: session})
	return session, nil
}

type sessionEnvelope struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	User         *wireUser `json:"user"`
}

type wireUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (c *Client) sessionFromEnvelope(env sessionEnvelope) *hosted.Session {
	session := &hosted.Session{
		AccessToken:  env.AccessToken,
		RefreshToken: env.RefreshToken,
		TokenType:    env.TokenType,
	}

	user, expiry, err := c.userFromToken(env.AccessToken)
	if err == nil {
		session.User = user
		session.ExpiresAt = expiry
	} else {
		c.logger.Debug("access token decode failed, using wire user: %v", err)
	}

	if session.User == nil && env.User != nil {
		if id, err := uuid.Parse(env.User.ID); err == nil {
			session.User = &hosted.User{
				ID:       id,
				Email:    env.User.Email,
				Phone:    env.User.Phone,
				Metadata: env.User.UserMetadata,
			}
		}
	}

	if session.ExpiresAt.IsZero() && env.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(env.ExpiresIn) * time.Second)
	}

	return session
}

func (c *Client) normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, c.phoneRegion)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (c *Client) emit(event hosted.AuthEvent) {
	c.mu.Lock()
	handlers := make([]hosted.AuthChangeHandler, 0, len(c.handlers))
	for _, fn := range c.handlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(event)
	}
}

// post issues a JSON POST against an auth endpoint. bearer overrides the anon
// key in the Authorization header; dest may be nil.
func (c *Client) post(ctx context.Context, endpoint string, body any, bearer string, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create request")
	}

	req.Header.Set("apikey", c.config.AnonKey)
	if bearer == "" {
		bearer = c.config.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "hosted service request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.serviceError(resp.StatusCode, raw)
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response")
	}
	return nil
}

type wireError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) serviceError(status int, body []byte) error {
	msg := fmt.Sprintf("hosted service responded with status %d", status)

	var we wireError
	if err := json.Unmarshal(body, &we); err == nil {
		switch {
		case we.Msg != "":
			msg = we.Msg
		case we.Message != "":
			msg = we.Message
		case we.ErrorDescription != "":
			msg = we.ErrorDescription
		case we.Error != "":
			msg = we.Error
		}
	}

	var err *goerrors.Error
	switch status {
	case http.StatusUnauthorized:
		err = goerrors.New(msg, goerrors.CategoryAuth).WithCode(goerrors.CodeUnauthorized)
	case http.StatusForbidden:
		err = goerrors.New(msg, goerrors.CategoryAuth).WithCode(goerrors.CodeForbidden)
	case http.StatusNotFound:
		err = goerrors.New(msg, goerrors.CategoryNotFound).WithCode(goerrors.CodeNotFound)
	case http.StatusConflict:
		err = goerrors.New(msg, goerrors.CategoryConflict).WithCode(goerrors.CodeConflict)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		err = goerrors.New(msg, goerrors.CategoryBadInput).WithCode(goerrors.CodeBadRequest)
	default:
		err = goerrors.New(msg, goerrors.CategoryOperation)
	}

	return err.WithMetadata(map[string]any{"status": status})
}

type subscription struct {
	cancel func()
}

func (s subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
