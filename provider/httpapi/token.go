package httpapi

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hosted"
	"github.com/google/uuid"
)

// tokenClaims is the slice of the service-issued access token we care about:
// subject for identity, expiry for refresh decisions, plus the contact and
// metadata fields the service mirrors into the token.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// userFromToken derives the user identity and expiry from an access token.
// Without a verifier the claims are decoded unverified: the service issued
// the token over the same channel, local verification is opt-in.
func (c *Client) userFromToken(raw string) (*hosted.User, time.Time, error) {
	claims := &tokenClaims{}

	if c.verifier != nil {
		if _, err := jwt.ParseWithClaims(raw, claims, c.verifier.jwks.Keyfunc); err != nil {
			return nil, time.Time{}, goerrors.Wrap(err, goerrors.CategoryAuth, "access token verification failed").
				WithCode(goerrors.CodeUnauthorized)
		}
	} else {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
			return nil, time.Time{}, goerrors.Wrap(err, goerrors.CategoryAuth, "malformed access token")
		}
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, time.Time{}, goerrors.Wrap(err, goerrors.CategoryAuth, "access token subject is not a user id")
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	return &hosted.User{
		ID:       id,
		Email:    claims.Email,
		Phone:    claims.Phone,
		Metadata: claims.UserMetadata,
	}, expiry, nil
}

// tokenVerifier keeps a background-refreshed JWKS from the service.
type tokenVerifier struct {
	jwks *keyfunc.JWKS
}

func newTokenVerifier(jwksURL string, logger hosted.Logger) (*tokenVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("background JWKS refresh failed: %v", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}
	return &tokenVerifier{jwks: jwks}, nil
}
