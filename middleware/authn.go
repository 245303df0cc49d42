package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/contrastkit/contrastkit/domain"
	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/session"
	"github.com/labstack/echo/v4"
)

// sessionContextKey is the echo context key holding the *Session.
const sessionContextKey = "contrastkit.session"

var (
	ErrNoCredentials = errors.New("missing bearer token")
	ErrNoSession     = errors.New("session not found")
	errSessionStore  = errors.New("session store unavailable")
)

// Session is an authenticated caller.
type Session struct {
	Token    string
	Claims   *session.Claims
	UserAuth *domain.UserAuth
}

func (s *Session) UserID() string {
	return s.Claims.User.ID
}

// SiteID prefers the site bound in the token, then the stored binding.
func (s *Session) SiteID() string {
	if site := s.Claims.Site(); site != "" {
		return site
	}
	if s.UserAuth != nil {
		return s.UserAuth.SiteID
	}

	return ""
}

// AccessToken is the Webflow token stored with the session, if any.
func (s *Session) AccessToken() string {
	if s.UserAuth == nil {
		return ""
	}

	return s.UserAuth.AccessToken
}

// Authenticator validates bearer session tokens and requires a live
// user-auth record for the token's user.
type Authenticator struct {
	signer   *session.Signer
	userAuth domain.UserAuthRepository
	logger   log.Logger
	metrics  *metrics.Metrics
}

// NewAuthenticator creates a new Authenticator. m may be nil.
func NewAuthenticator(signer *session.Signer, userAuth domain.UserAuthRepository, logger log.Logger, m *metrics.Metrics) *Authenticator {
	return &Authenticator{
		signer:   signer,
		userAuth: userAuth,
		logger:   logger.With(log.Fields{"component": "authn"}),
		metrics:  m,
	}
}

// Authenticate checks an Authorization header value.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (*Session, error) {
	token, ok := bearerToken(authHeader)
	if !ok {
		return nil, ErrNoCredentials
	}

	claims, err := a.signer.Verify(token)
	if err != nil {
		return nil, err
	}

	auth, err := a.userAuth.Get(ctx, claims.User.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSessionStore, err)
	}

	return &Session{Token: token, Claims: claims, UserAuth: auth}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

// FailureCause names why a token was rejected, for logs and metrics only.
func FailureCause(err error) string {
	switch {
	case errors.Is(err, ErrNoCredentials):
		return "missing"
	case errors.Is(err, session.ErrInvalidFormat):
		return "malformed"
	case errors.Is(err, session.ErrInvalidSignature):
		return "bad_signature"
	case errors.Is(err, session.ErrTokenExpired):
		return "expired"
	case errors.Is(err, session.ErrInvalidPayload):
		return "bad_payload"
	case errors.Is(err, ErrNoSession):
		return "no_session"
	default:
		return "store_error"
	}
}

// IsStoreFailure reports whether authentication failed on the KV store
// rather than on the caller's credentials.
func IsStoreFailure(err error) bool {
	return errors.Is(err, errSessionStore)
}

// LogFailure records a rejected token. Tokens are logged by fingerprint only.
func (a *Authenticator) LogFailure(ctx context.Context, authHeader string, err error) {
	cause := FailureCause(err)
	fields := log.Fields{"cause": cause}
	if token, ok := bearerToken(authHeader); ok {
		fields["token_fp"] = session.Fingerprint(token)
	}

	if IsStoreFailure(err) {
		a.logger.Error(ctx, "Session lookup failed", err, fields)
	} else {
		fields["reason"] = err.Error()
		a.logger.Warn(ctx, "Rejected session token", fields)
	}

	if a.metrics != nil {
		a.metrics.AuthFailuresTotal.WithLabelValues(cause).Inc()
	}
}

// RequireSession rejects requests without a valid session with
// 401 {"error":"Unauthorized"}.
func (a *Authenticator) RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)

			s, err := a.Authenticate(c.Request().Context(), header)
			if err != nil {
				a.LogFailure(c.Request().Context(), header, err)
				if IsStoreFailure(err) {
					return c.JSON(http.StatusInternalServerError, apierrors.Internal("Failed to verify session"))
				}

				return c.JSON(http.StatusUnauthorized, apierrors.Unauthorized())
			}

			c.Set(sessionContextKey, s)

			return next(c)
		}
	}
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(c echo.Context) (*Session, bool) {
	s, ok := c.Get(sessionContextKey).(*Session)
	return s, ok
}
