package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// FirebaseVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type FirebaseVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository repositories.UserRepository
	firebaseAuth   FirebaseVerifier
	jwtSecret      string
	jwtTTL         time.Duration
	log            *logrus.Entry
}

// NewAuthHandler creates a new AuthHandler. firebaseAuth may be nil.
func NewAuthHandler(userRepo repositories.UserRepository, firebaseAuth FirebaseVerifier, jwtSecret string, jwtTTL time.Duration, log *logrus.Entry) *AuthHandler {
	return &AuthHandler{
		userRepository: userRepo,
		firebaseAuth:   firebaseAuth,
		jwtSecret:      jwtSecret,
		jwtTTL:         jwtTTL,
		log:            log,
	}
}

// RegisterAuthRoutes registers the public authentication routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/signin", h.SignIn)
	g.POST("/firebase-login", h.FirebaseLogin)
}

// RegisterAccountRoutes registers the authenticated account routes
func (h *AuthHandler) RegisterAccountRoutes(g *echo.Group) {
	g.PUT("/auth/password", h.ChangePassword)
}

func (h *AuthHandler) tokenResponse(c echo.Context, status int, user *models.User) error {
	token, err := middleware.IssueToken(h.jwtSecret, h.jwtTTL, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token").SetInternal(err)
	}
	return success(c, status, echo.Map{"token": token, "user": user})
}

// Signup handles local user registration with username, email and password
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	taken, err := h.userRepository.UsernameTaken(req.Username)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	}
	if taken {
		return echo.NewHTTPError(http.StatusConflict, "Username is already taken")
	}
	taken, err = h.userRepository.EmailTaken(req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	}
	if taken {
		return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Password:    string(hashedPassword),
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Username or email is already taken")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user").SetInternal(err)
	}
	h.log.WithField("user_id", user.ID).Info("user signed up")

	return h.tokenResponse(c, http.StatusCreated, user)
}

// SignIn authenticates with a username or email and a password
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	const invalid = "Invalid login or password"
	user, err := h.userRepository.GetUserByLogin(req.Login)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, invalid)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	}
	if user.Password == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, invalid)
	}

	// Compare passwords
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, invalid)
	}

	return h.tokenResponse(c, http.StatusOK, user)
}

// ChangePassword replaces the caller's password after checking the current one
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(userID)
	if err != nil {
		return mapServiceError(err)
	}
	if user.Password != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Current password is incorrect")
		}
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}
	if err := h.userRepository.UpdateFields(userID, map[string]interface{}{"password": string(hashed)}); err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Password updated"})
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9_]+`)

// FirebaseLogin verifies a Firebase ID token and issues a local JWT. The
// Firebase account is matched by UID, then by email, otherwise a new user
// is created.
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	if h.firebaseAuth == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Firebase login is not configured")
	}
	var req FirebaseLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	// Verify Firebase ID token
	token, err := h.firebaseAuth.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	firebaseUID := token.UID
	email, _ := token.Claims["email"].(string)
	email = strings.ToLower(email)
	name, _ := token.Claims["name"].(string)
	picture, _ := token.Claims["picture"].(string)

	user, err := h.userRepository.GetUserByFirebaseUID(firebaseUID)
	switch {
	case err == nil:
	case !errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
	case email != "":
		user, err = h.userRepository.GetUserByEmail(email)
		if err == nil {
			// link the existing account
			user.FirebaseUID = &firebaseUID
			if err := h.userRepository.UpdateFields(user.ID, map[string]interface{}{"firebase_uid": firebaseUID}); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to link Firebase account").SetInternal(err)
			}
			break
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, "Database error").SetInternal(err)
		}
		fallthrough
	default:
		user, err = h.createFirebaseUser(firebaseUID, email, name, picture)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user").SetInternal(err)
		}
		h.log.WithField("user_id", user.ID).Info("user created from firebase login")
	}

	return h.tokenResponse(c, http.StatusOK, user)
}

func (h *AuthHandler) createFirebaseUser(uid, email, name, picture string) (*models.User, error) {
	base := email
	if i := strings.Index(base, "@"); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = name
	}
	base = nonUsernameChars.ReplaceAllString(strings.ToLower(base), "_")
	base = strings.Trim(base, "_")
	if len(base) < 3 {
		base = "user"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	if email == "" {
		email = uid + "@firebase.local"
	}

	username := base
	for i := 0; i < 5; i++ {
		taken, err := h.userRepository.UsernameTaken(username)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		username = fmt.Sprintf("%s_%s", base, uuid.NewString()[:6])
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		DisplayName: name,
		AvatarURL:   picture,
		FirebaseUID: &uid,
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}
