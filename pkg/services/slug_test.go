package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World! 2024", "hello-world-2024"},
		{"  --Already--slug--  ", "already-slug"},
		{"../../etc/passwd", "etc-passwd"},
		{"Ünïcode Title", "n-code-title"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateSlug(tt.in))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_file_1_.md", SanitizeFilename("my file (1).md"))
	assert.Equal(t, "a-b_c.md", SanitizeFilename("a-b_c.md"))
	assert.Equal(t, "_etc_passwd", SanitizeFilename("/etc/passwd"))
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("hello-world"))
	assert.False(t, ValidSlug(""))
	assert.False(t, ValidSlug("Hello"))
	assert.False(t, ValidSlug("../x"))
	assert.False(t, ValidSlug("-leading"))
}

func TestResolveSlug(t *testing.T) {
	slug, err := resolveSlug("", "My Title")
	assert.NoError(t, err)
	assert.Equal(t, "my-title", slug)

	_, err = resolveSlug("", "???")
	assert.ErrorIs(t, err, ErrInvalidSlug)
}
