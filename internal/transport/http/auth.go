package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"intelliquiz-engine/internal/platform/logger"
)

const (
	principalKey = "principal"
	rolesKey     = "roles"
)

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTAuth resolves an optional bearer token into a principal.
// Requests without a token pass through anonymously; a token that fails validation is rejected.
type JWTAuth struct {
	secret []byte
	issuer string
	log    *logger.Logger
}

func NewJWTAuth(secret, issuer string, log *logger.Logger) *JWTAuth {
	return &JWTAuth{secret: []byte(secret), issuer: issuer, log: log.With("component", "auth")}
}

// Principal is the middleware that populates the principal and roles on the context.
func (a *JWTAuth) Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("authorization header format must be Bearer {token}"))
			return
		}

		cl, err := a.parse(parts[1])
		if err != nil {
			a.log.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(tokenMessage(err)))
			return
		}
		c.Set(principalKey, cl.Subject)
		c.Set(rolesKey, cl.Roles)
		c.Next()
	}
}

func (a *JWTAuth) parse(raw string) (*claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	cl, ok := token.Claims.(*claims)
	if !ok || !token.Valid || cl.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	return cl, nil
}

// RequireRole rejects callers whose token lacks role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(principalKey); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("authentication required"))
			return
		}
		roles, _ := c.Get(rolesKey)
		list, _ := roles.([]string)
		for _, r := range list {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody("insufficient permissions"))
	}
}

func principalFrom(c *gin.Context) string {
	v, ok := c.Get(principalKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "token not active yet"
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return "invalid token signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "invalid token issuer"
	}
	return "invalid token"
}
