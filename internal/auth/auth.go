// Package auth resolves the caller of a request into an explicit Session.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Auth modes.
const (
	ModeDisabled = "disabled"
	ModeToken    = "token"
)

const (
	// CookieName is the cookie the web client stores its credential in.
	CookieName = "auth-token"
	// UserHeader names the caller in disabled mode.
	UserHeader  = "X-User-ID"
	EmailHeader = "X-User-Email"
	// DefaultUser is used in disabled mode when no UserHeader is sent.
	DefaultUser = "local"

	sessionKey = "auth.session"
)

// ErrUnauthenticated is returned when a credential is missing or unknown.
var ErrUnauthenticated = errors.New("unauthenticated")

// Session is the identity attached to an authenticated request.
type Session struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// Verifier maps a credential to a Session.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Session, error)
}

// User is a configured token holder.
type User struct {
	Token  string `mapstructure:"token" json:"token"`
	UserID string `mapstructure:"user_id" json:"user_id"`
	Email  string `mapstructure:"email" json:"email"`
}

// TokenVerifier accepts a fixed set of tokens.
type TokenVerifier struct {
	users []User
}

// NewTokenVerifier creates a TokenVerifier for the given users.
func NewTokenVerifier(users []User) *TokenVerifier {
	return &TokenVerifier{users: users}
}

// Verify implements Verifier.
func (v *TokenVerifier) Verify(ctx context.Context, credential string) (Session, error) {
	if credential == "" {
		return Session{}, ErrUnauthenticated
	}
	for _, u := range v.users {
		if subtle.ConstantTimeCompare([]byte(u.Token), []byte(credential)) == 1 {
			return Session{UserID: u.UserID, Email: u.Email}, nil
		}
	}
	return Session{}, ErrUnauthenticated
}

// Middleware attaches a Session to every request. In disabled mode the
// caller is taken from UserHeader; otherwise the credential from the
// CookieName cookie or the Authorization header must pass verifier.
func Middleware(mode string, verifier Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if mode != ModeToken {
			userID := strings.TrimSpace(c.GetHeader(UserHeader))
			if userID == "" {
				userID = DefaultUser
			}
			c.Set(sessionKey, Session{UserID: userID, Email: c.GetHeader(EmailHeader)})
			c.Next()
			return
		}

		session, err := verifier.Verify(c.Request.Context(), credential(c))
		if err != nil {
			logger.Debug("rejected credential",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
				"code":  "UNAUTHORIZED",
			})
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

// SessionFrom returns the Session attached by Middleware.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok && s.UserID != ""
}

// WithSession attaches s to the request. Used by tests and alternative front ends.
func WithSession(c *gin.Context, s Session) {
	c.Set(sessionKey, s)
}

func credential(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
