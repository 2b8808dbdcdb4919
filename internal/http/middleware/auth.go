package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/everhighit/coach-api/internal/http/response"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

const authUserKey = "auth_user_id"

// AuthMiddleware checks Supabase access tokens (HS256, signed with the project's JWT secret).
// With no secret configured every request passes unchecked.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    log.With("Middleware", "AuthMiddleware"),
		secret: []byte(strings.TrimSpace(jwtSecret)),
	}
}

func (am *AuthMiddleware) Enabled() bool { return am != nil && len(am.secret) > 0 }

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.RespondError(c, apierr.Unauthorized(errors.New("missing or invalid token")))
			return
		}
		userID, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("rejected access token", "error", err)
			response.RespondError(c, apierr.Unauthorized(err))
			return
		}
		c.Set(authUserKey, userID)
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, errors.New("token expired")
		}
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("token subject is not a user id")
	}
	return uid, nil
}

// AuthUserID returns the user id set by RequireAuth, if any.
func AuthUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(authUserKey)
	if !ok {
		return uuid.Nil, false
	}
	uid, ok := v.(uuid.UUID)
	return uid, ok && uid != uuid.Nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
