package project

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeRepoName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple name is lowercased",
			input:    "MyApp",
			expected: "myapp",
		},
		{
			name:     "whitespace runs collapse to single hyphen",
			input:    "My   Cool\tProject",
			expected: "my-cool-project",
		},
		{
			name:     "invalid characters stripped",
			input:    "proj#ect!(v2)",
			expected: "projectv2",
		},
		{
			name:     "leading and trailing separators trimmed",
			input:    "--_my.repo._--",
			expected: "my.repo",
		},
		{
			name:     "unicode dropped",
			input:    "café-app",
			expected: "caf-app",
		},
		{
			name:     "already valid name unchanged",
			input:    "valid-repo_name.v1",
			expected: "valid-repo_name.v1",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only invalid characters",
			input:    "!!!***",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeRepoName(tt.input))
		})
	}
}

func TestSanitizeRepoNameProperties(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9\-_.]*$`)
	inputs := []string{
		"MyApp",
		strings.Repeat("Long Name ", 40),
		"  spaces  everywhere  ",
		"Ünïcödé Prøject",
		"...dots...",
		strings.Repeat("a", 99) + "-x",
	}

	for _, in := range inputs {
		out := SanitizeRepoName(in)

		// Deterministic
		assert.Equal(t, out, SanitizeRepoName(in))

		assert.True(t, valid.MatchString(out), "output %q contains invalid characters", out)
		assert.LessOrEqual(t, len(out), 100)
		if out != "" {
			assert.NotContains(t, "-_.", string(out[0]))
			assert.NotContains(t, "-_.", string(out[len(out)-1]))
		}
	}
}

func TestNewProject(t *testing.T) {
	mod := time.Now().Add(-time.Hour)

	p := New("/tmp/proj", "proj", mod, true)
	assert.Equal(t, StatusReady, p.Status)
	assert.True(t, p.HasRepo)
	assert.Equal(t, mod, p.ModTime)

	p = New("/tmp/other", "other", mod, false)
	assert.Equal(t, StatusNeedsRepo, p.Status)
	assert.False(t, p.HasRepo)
}

func TestSetProgress(t *testing.T) {
	p := New("/tmp/proj", "proj", time.Now(), true)

	p.SetProgress(33.333)
	assert.Equal(t, 33.3, p.Progress)

	p.SetProgress(150)
	assert.Equal(t, 100.0, p.Progress)

	p.SetProgress(-1)
	assert.Equal(t, 0.0, p.Progress)
}
