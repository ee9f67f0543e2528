package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "hello world", nil},
		{"single", "hi @alice!", []string{"alice"}},
		{"dedup and lower", "@Bob and @bob and @carol_1", []string{"bob", "carol_1"}},
		{"email is not a mention", "mail me at bob@example.com", nil},
		{"too short", "@ab is too short", nil},
		{"start of line", "@dave_x: look", []string{"dave_x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.text))
		})
	}
}
