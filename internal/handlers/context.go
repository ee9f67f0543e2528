package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// getUserIDFromContext returns the authenticated user's ID, 0 when absent
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := middleware.UserClaims(c)
	if !ok {
		return 0
	}
	return claims.UserID
}

// currentUser returns the caller's ID or a 401
func currentUser(c echo.Context) (uint, error) {
	id := getUserIDFromContext(c)
	if id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

// bindAndValidate binds the request body into req and validates it
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

func parseUintParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// pagination reads page and limit query params
func pagination(c echo.Context, defaultLimit, maxLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}
	return page, limit
}

func paginationMeta(page, limit int, total int64) echo.Map {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      total,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}

func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func successWithMeta(c echo.Context, data interface{}, meta echo.Map) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data, "meta": meta})
}

// mapServiceError converts service and repository errors into HTTP errors
func mapServiceError(err error) error {
	var he *echo.HTTPError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &he):
		return he
	case errors.Is(err, services.ErrNotFound), errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "You are not allowed to do this")
	case errors.Is(err, services.ErrBlocked):
		return echo.NewHTTPError(http.StatusForbidden, "This user is unavailable")
	case errors.Is(err, services.ErrNotParticipant):
		return echo.NewHTTPError(http.StatusForbidden, "You are not a member of this chat")
	case errors.Is(err, services.ErrSelfAction):
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot do this to yourself")
	case errors.Is(err, services.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid input")
	case errors.Is(err, repositories.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "Already exists")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

// ErrorHandler renders every error as {"success": false, "error": {...}}
func ErrorHandler(log *logrus.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = messageOf(he.Message)
		}
		if code >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"uri":    c.Request().RequestURI,
			}).Error("request failed")
			message = http.StatusText(code)
		}
		body := echo.Map{"success": false, "error": echo.Map{"code": code, "message": message}}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.WithError(err).Warn("failed to write error response")
		}
	}
}

func messageOf(msg interface{}) string {
	switch m := msg.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return ""
	}
	return http.StatusText(http.StatusInternalServerError)
}
