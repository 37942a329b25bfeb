package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/infrastructure/auth"
	"github.com/bpo/cashclosing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Auth context keys
const (
	ActorKey      = "actor"
	JWTClaimsKey  = "jwt_claims"
	CompanyIDKey  = "company_id"
	UserIDKey     = "user_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Development identity headers, honoured only when AllowDevHeaders is set
const (
	HeaderUserID    = "X-User-ID"
	HeaderCompanyID = "X-Company-ID"
	HeaderUserName  = "X-User-Name"
	HeaderActorRole = "X-Actor-Role"
)

var errMissingDevIdentity = errors.New("missing development identity headers")

// JWTMiddlewareConfig holds configuration for the auth middleware
type JWTMiddlewareConfig struct {
	// JWTService validates bearer tokens. May be nil when only dev headers are used.
	JWTService *auth.JWTService
	// AllowDevHeaders accepts X-User-ID / X-Company-ID / X-Actor-Role when no
	// bearer token is sent. Never enable in production.
	AllowDevHeaders bool
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require authentication
	SkipPathPrefixes []string
	// Optional callback if authentication fails (default: return 401)
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// DefaultJWTConfig returns default auth middleware configuration
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/api/v1/health",
		},
		SkipPathPrefixes: []string{
			"/swagger",
		},
	}
}

// JWTAuthMiddleware creates JWT authentication middleware
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(jwtService))
}

// JWTAuthMiddlewareWithConfig resolves the acting user of the request and
// stores it under ActorKey.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" && cfg.AllowDevHeaders {
			actor, err := actorFromDevHeaders(c)
			if err != nil {
				handleAuthError(c, cfg, err, "Invalid development identity headers")
				return
			}
			setActor(c, actor)
			c.Next()
			return
		}

		if authHeader == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		if tokenString == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing token")
			return
		}
		if cfg.JWTService == nil {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Token authentication is disabled")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}
		actor, err := claims.Actor()
		if err != nil {
			handleAuthError(c, cfg, err, "Token claims are not usable")
			return
		}

		c.Set(JWTClaimsKey, claims)
		setActor(c, actor)

		if cfg.Logger != nil {
			cfg.Logger.Debug("JWT authentication successful",
				zap.String("user_id", claims.UserID),
				zap.String("company_id", claims.CompanyID),
				zap.String("role", claims.Role),
			)
		}

		c.Next()
	}
}

func actorFromDevHeaders(c *gin.Context) (closing.Actor, error) {
	userHeader := c.GetHeader(HeaderUserID)
	companyHeader := c.GetHeader(HeaderCompanyID)
	if userHeader == "" || companyHeader == "" {
		return closing.Actor{}, errMissingDevIdentity
	}
	userID, err := uuid.Parse(userHeader)
	if err != nil {
		return closing.Actor{}, auth.ErrInvalidClaims
	}
	companyID, err := uuid.Parse(companyHeader)
	if err != nil {
		return closing.Actor{}, auth.ErrInvalidClaims
	}

	role := closing.ActorRole(strings.ToLower(c.GetHeader(HeaderActorRole)))
	if role == "" {
		role = closing.ActorRoleClient
	}
	if !role.IsValid() {
		return closing.Actor{}, auth.ErrInvalidRole
	}
	return closing.Actor{
		UserID:    userID,
		Name:      c.GetHeader(HeaderUserName),
		Role:      role,
		CompanyID: companyID,
	}, nil
}

func setActor(c *gin.Context, actor closing.Actor) {
	c.Set(ActorKey, actor)
	c.Set(CompanyIDKey, actor.CompanyID.String())
	c.Set(UserIDKey, actor.UserID.String())

	ctx := logger.WithActor(c.Request.Context(), actor.CompanyID.String(), actor.UserID.String(), actor.Role.String())
	c.Request = c.Request.WithContext(ctx)
}

func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		return
	}

	if cfg.Logger != nil {
		cfg.Logger.Warn("Authentication failed",
			zap.Error(err),
			zap.String("message", message),
			zap.String("path", c.Request.URL.Path),
		)
	}

	errorCode := "UNAUTHORIZED"
	errorMessage := "Authentication required"

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		errorCode = "TOKEN_EXPIRED"
		errorMessage = "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken):
		errorCode = "INVALID_TOKEN"
		errorMessage = "Invalid token"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		errorCode = "TOKEN_NOT_VALID"
		errorMessage = "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidRole):
		errorCode = "INVALID_ROLE"
		errorMessage = "Unknown actor role"
	case errors.Is(err, auth.ErrInvalidClaims), errors.Is(err, auth.ErrMissingCompanyID), errors.Is(err, auth.ErrMissingUserID):
		errorCode = "INVALID_CLAIMS"
		errorMessage = "Token does not identify a user and company"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    errorCode,
			"message": errorMessage,
		},
	})
}

// GetActor returns the acting user stored by the auth middleware
func GetActor(c *gin.Context) (closing.Actor, bool) {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(closing.Actor); ok {
			return actor, true
		}
	}
	return closing.Actor{}, false
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetCompanyID returns the company of the authenticated actor, or ""
func GetCompanyID(c *gin.Context) string {
	return c.GetString(CompanyIDKey)
}

// GetUserID returns the authenticated user id, or ""
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
