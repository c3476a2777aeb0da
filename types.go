package hosted

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// AuthEventKind identifies the kind of auth state change emitted by the
// hosted service.
type AuthEventKind string

const (
	AuthEventInitialSession   AuthEventKind = "INITIAL_SESSION"
	AuthEventSignedIn         AuthEventKind = "SIGNED_IN"
	AuthEventSignedOut        AuthEventKind = "SIGNED_OUT"
	AuthEventTokenRefreshed   AuthEventKind = "TOKEN_REFRESHED"
	AuthEventUserUpdated      AuthEventKind = "USER_UPDATED"
	AuthEventPasswordRecovery AuthEventKind = "PASSWORD_RECOVERY"
)

// AuthEvent carries an auth state change and the session it resulted in.
// Session is nil when the change ended the session.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// AuthChangeHandler receives auth events. Handlers run on the client's
// notification goroutine and must not block.
type AuthChangeHandler func(event AuthEvent)

// Subscription is a handle to an active auth-event subscription.
type Subscription interface {
	Unsubscribe()
}

// Client is the handle to the hosted backend service. Implementations live in
// provider sub-packages; the store only consumes this surface.
type Client interface {
	// GetSession returns the current session, or (nil, nil) when no session
	// exists. A non-nil error means the service could not be reached.
	GetSession(ctx context.Context) (*Session, error)

	// OnAuthStateChange registers a handler for subsequent auth events.
	OnAuthStateChange(fn AuthChangeHandler) (Subscription, error)

	SignInWithPassword(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, payload SignUpPayload) error

	// SignInWithOAuth starts the OAuth redirect flow and returns the URL the
	// caller should send the user to.
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)

	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error

	// From opens a query against a table of the hosted REST surface.
	From(table string) QueryBuilder
}

// QueryBuilder builds a single request against a hosted table. Builders are
// single-use: configure the query, then call Do.
type QueryBuilder interface {
	Select(columns ...string) QueryBuilder
	Insert(record any) QueryBuilder
	Update(fields map[string]any) QueryBuilder
	Delete() QueryBuilder
	Eq(column string, value any) QueryBuilder
	Order(column string, desc bool) QueryBuilder
	Single() QueryBuilder

	// Do executes the query, decoding any response rows into dest. Pass nil
	// when the response body is not needed.
	Do(ctx context.Context, dest any) error
}

// SignUpPayload carries the fields accepted by the hosted sign-up endpoint.
// Phone is optional and normalized to E.164 by the provider before dispatch.
type SignUpPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] HOSTED "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] HOSTED "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] HOSTED "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] HOSTED "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
