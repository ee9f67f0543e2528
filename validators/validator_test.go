package validators

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `validate:"required,username"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

type passwordChange struct {
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required,min=8,nefield=OldPassword"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		input   interface{}
		message string
	}{
		{"valid", signup{"alice_01", "alice@example.com", "password1"}, ""},
		{"short username", signup{"al", "alice@example.com", "password1"}, "username must be 3-30 letters, digits or underscores"},
		{"username with dash", signup{"al-ice", "alice@example.com", "password1"}, "username must be 3-30 letters, digits or underscores"},
		{"bad email", signup{"alice", "nope", "password1"}, "email must be a valid email"},
		{"short password", signup{"alice", "alice@example.com", "short"}, "password must be at least 8 characters"},
		{"missing fields", signup{}, "username is required; email is required; password is required"},
		{"same password", passwordChange{"password1", "password1"}, "newpassword must differ from oldpassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Equal(t, tt.message, he.Message)
		})
	}
}
