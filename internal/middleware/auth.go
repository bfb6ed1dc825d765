package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"zynexhub/internal/apierr"
	"zynexhub/internal/logging"
	"zynexhub/internal/models"
	"zynexhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CallerKey  = "caller"
	ProfileKey = "profile"
)

// TokenClaims are the claims the external auth provider puts in access tokens.
type TokenClaims struct {
	Role     string `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, c services.Claims) (*models.Profile, error)
}

// Auth verifies HS256 bearer tokens and puts the caller into the gin context.
type Auth struct {
	secret   []byte
	profiles ProfileProvisioner
}

func NewAuth(secret string, profiles ProfileProvisioner) *Auth {
	return &Auth{secret: []byte(secret), profiles: profiles}
}

// AuthRequired rejects requests without a valid token with 401.
func (a *Auth) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c, true); !ok {
			return
		}
		c.Next()
	}
}

// LoadCaller authenticates when a token is present and lets anonymous
// requests through. A present but invalid token is still rejected.
func (a *Auth) LoadCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c, false); !ok {
			return
		}
		c.Next()
	}
}

func (a *Auth) authenticate(c *gin.Context, required bool) (models.Caller, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if required {
			apierr.Abort(c, http.StatusUnauthorized, "unauthenticated", "authorization header is missing")
			return models.Caller{}, false
		}
		return models.Caller{}, true
	}

	scheme, tokenString, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
		apierr.Abort(c, http.StatusUnauthorized, "unauthenticated", "invalid token format")
		return models.Caller{}, false
	}

	claims, err := a.parse(tokenString)
	if err != nil {
		logging.From(c.Request.Context()).WithError(err).Debug("token rejected")
		apierr.Abort(c, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
		return models.Caller{}, false
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		apierr.Abort(c, http.StatusUnauthorized, "unauthenticated", "invalid token subject")
		return models.Caller{}, false
	}
	role := models.Role(claims.Role)
	if !role.Valid() {
		role = models.RoleUser
	}

	profile, err := a.profiles.EnsureProfile(c.Request.Context(), services.Claims{
		Subject:     sub,
		Username:    claims.Username,
		DisplayName: claims.Name,
		Role:        role,
	})
	if err != nil {
		apierr.Write(c, err)
		return models.Caller{}, false
	}

	caller := models.Caller{ID: profile.ID, Role: role}
	c.Set(CallerKey, caller)
	c.Set(ProfileKey, profile)
	c.Request = c.Request.WithContext(logging.Into(c.Request.Context(),
		logging.From(c.Request.Context()).WithField("user_id", caller.ID)))
	return caller, true
}

func (a *Auth) parse(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// CurrentCaller returns the authenticated caller, or the zero Caller for
// anonymous requests.
func CurrentCaller(c *gin.Context) models.Caller {
	if v, ok := c.Get(CallerKey); ok {
		if caller, ok := v.(models.Caller); ok {
			return caller
		}
	}
	return models.Caller{}
}

// RequireModerator must run after AuthRequired.
func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentCaller(c).IsModerator() {
			apierr.Abort(c, http.StatusForbidden, "permission_denied", "moderator role required")
			return
		}
		c.Next()
	}
}
