// Package gateware applies the access-gate decision at an HTTP boundary:
// requests reach the protected handlers only when hosted.Decide lands on
// content; the other outcomes answer with their own handlers.
package gateware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hosted"
	"github.com/goliatone/go-print"
)

// Cookies carrying the session-local gate flags across requests.
const (
	CookieAuthDismissed  = "hosted_auth_dismissed"
	CookieShowAuthPrompt = "hosted_show_auth"
)

const defaultContextKey = "hosted_state"

type Config struct {
	// Store supplies state snapshots. Required.
	Store *hosted.Store

	// Flags extracts the gate flags from the request. Defaults to
	// CookieFlags.
	Flags func(c *fiber.Ctx) hosted.GateFlags

	// Outcome handlers. Content always falls through to Next.
	Loading          fiber.Handler
	ConnectionChoice fiber.Handler
	AuthPrompt       fiber.Handler

	// ErrorHandler receives errors returned by outcome handlers.
	ErrorHandler func(c *fiber.Ctx, err error) error

	// ContextKey is the locals key the state snapshot is stored under for
	// downstream handlers. Defaults to "hosted_state".
	ContextKey string

	Logger hosted.Logger
}

// New builds the gate middleware. A nil store is programmer misuse and fails
// fast.
func New(config Config) fiber.Handler {
	if config.Store == nil {
		panic("gateware: Config.Store is required")
	}

	cfg := setDefaults(config)

	return func(c *fiber.Ctx) error {
		state := cfg.Store.State()
		c.Locals(cfg.ContextKey, state)

		var err error
		switch hosted.Decide(state, cfg.Flags(c)) {
		case hosted.GateLoading:
			err = cfg.Loading(c)
		case hosted.GateConnectionChoice:
			err = cfg.ConnectionChoice(c)
		case hosted.GateAuthPrompt:
			err = cfg.AuthPrompt(c)
		default:
			return c.Next()
		}

		if err != nil {
			return cfg.ErrorHandler(c, err)
		}
		return nil
	}
}

// StateFromLocals recovers the snapshot the middleware stored for the
// request. The zero State (loading) comes back when the middleware did not
// run.
func StateFromLocals(c *fiber.Ctx, key string) hosted.State {
	if key == "" {
		key = defaultContextKey
	}
	state, ok := c.Locals(key).(hosted.State)
	if !ok {
		return hosted.State{Loading: true}
	}
	return state
}

// CookieFlags reads the gate flags from cookies, with ?auth=1 forcing the
// prompt for the current request.
func CookieFlags(c *fiber.Ctx) hosted.GateFlags {
	return hosted.GateFlags{
		ShowAuthPrompt: c.Cookies(CookieShowAuthPrompt) == "1" || c.Query("auth") == "1",
		AuthDismissed:  c.Cookies(CookieAuthDismissed) == "1",
	}
}

// ContinueOffline is the handler for the choice screen's offline action: it
// records the dismissal and sends the user back.
func ContinueOffline(c *fiber.Ctx) error {
	setFlagCookie(c, CookieAuthDismissed, "1")
	return c.Redirect(c.Query("redirect", "/"), http.StatusSeeOther)
}

// RequestAuth is the handler for the choice screen's "try authentication"
// action.
func RequestAuth(c *fiber.Ctx) error {
	setFlagCookie(c, CookieShowAuthPrompt, "1")
	return c.Redirect(c.Query("redirect", "/"), http.StatusSeeOther)
}

// DismissAuthPrompt handles the prompt's close action; both flags move in one
// response so the next request renders content.
func DismissAuthPrompt(c *fiber.Ctx) error {
	setFlagCookie(c, CookieShowAuthPrompt, "0")
	setFlagCookie(c, CookieAuthDismissed, "1")
	return c.Redirect(c.Query("redirect", "/"), http.StatusSeeOther)
}

func setFlagCookie(c *fiber.Ctx, name, value string) {
	c.Cookie(&fiber.Cookie{
		Name:  name,
		Value: value,
		Path:  "/",
	})
}

func setDefaults(cfg Config) Config {
	if cfg.Flags == nil {
		cfg.Flags = CookieFlags
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Loading == nil {
		cfg.Loading = defaultLoading
	}
	if cfg.ConnectionChoice == nil {
		cfg.ConnectionChoice = defaultConnectionChoice
	}
	if cfg.AuthPrompt == nil {
		cfg.AuthPrompt = defaultAuthPrompt
	}
	if cfg.ErrorHandler == nil {
		logger := cfg.Logger
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return defaultErrorHandler(c, err, logger)
		}
	}
	return cfg
}

func defaultLoading(c *fiber.Ctx) error {
	c.Set(fiber.HeaderRetryAfter, "1")
	return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
		"status": "loading",
	})
}

func defaultConnectionChoice(c *fiber.Ctx) error {
	return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
		"status": "connection-error",
		"actions": fiber.Map{
			"continue_offline":   "/gate/offline",
			"try_authentication": "/gate/auth",
		},
	})
}

func defaultAuthPrompt(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"status": "authentication-required",
	})
}

func defaultErrorHandler(c *fiber.Ctx, err error, logger hosted.Logger) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected gate handler error").
			WithCode(goerrors.CodeInternal)
	}

	logger.Error(
		"gate handler error category=%s details=%s",
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return c.Status(status).JSON(fiber.Map{
		"error": richErr.Message,
	})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
