package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ContextUserKey is where the authenticated claims are stored on the echo context
const ContextUserKey = "user"

// TokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserLookup resolves token subjects to live accounts
type UserLookup interface {
	GetUserByID(id uint) (*models.User, error)
	GetUserByFirebaseUID(firebaseUID string) (*models.User, error)
}

// AuthConfig configures JWTAuthMiddleware. Firebase and Users are optional.
// With Users set, tokens of deleted accounts are refused; with Firebase set
// as well, a Firebase ID token is accepted in place of a local JWT.
type AuthConfig struct {
	Secret   string
	Firebase TokenVerifier
	Users    UserLookup
	Log      *logrus.Entry
}

// IssueToken signs an HS256 token for the user
func IssueToken(secret string, ttl time.Duration, user *models.User) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a local token and returns its claims
func ParseToken(secret, tokenString string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// token query parameter used by websocket clients.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if t := c.QueryParam("token"); t != "" {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}

// JWTAuthMiddleware checks for a valid JWT and extracts user claims.
func JWTAuthMiddleware(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims, err := ParseToken(cfg.Secret, tokenString)
			if err != nil {
				claims = firebaseClaims(c, cfg, tokenString)
				if claims == nil {
					if errors.Is(err, jwt.ErrSignatureInvalid) {
						return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
					}
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
				}
			} else if cfg.Users != nil {
				if _, err := cfg.Users.GetUserByID(claims.UserID); err != nil {
					if errors.Is(err, repositories.ErrNotFound) {
						return echo.NewHTTPError(http.StatusUnauthorized, "Account no longer exists")
					}
					return err
				}
			}

			// Store user claims in context
			c.Set(ContextUserKey, claims)

			return next(c)
		}
	}
}

// firebaseClaims accepts a Firebase ID token of a linked user
func firebaseClaims(c echo.Context, cfg AuthConfig, idToken string) *models.JwtCustomClaims {
	if cfg.Firebase == nil || cfg.Users == nil {
		return nil
	}
	token, err := cfg.Firebase.VerifyIDToken(c.Request().Context(), idToken)
	if err != nil {
		return nil
	}
	user, err := cfg.Users.GetUserByFirebaseUID(token.UID)
	if err != nil {
		if cfg.Log != nil {
			cfg.Log.WithField("firebase_uid", token.UID).Debug("firebase token without linked user")
		}
		return nil
	}
	return &models.JwtCustomClaims{UserID: user.ID, Username: user.Username}
}

// UserClaims returns the authenticated claims stored by JWTAuthMiddleware
func UserClaims(c echo.Context) (*models.JwtCustomClaims, bool) {
	claims, ok := c.Get(ContextUserKey).(*models.JwtCustomClaims)
	return claims, ok && claims != nil
}
