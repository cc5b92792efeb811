package output

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorSchemes(t *testing.T) {
	for name, scheme := range map[string]*ColorScheme{
		"default":  DefaultColorScheme(),
		"no color": NoColorScheme(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, scheme.Label)
			assert.NotNil(t, scheme.Value)
			assert.NotNil(t, scheme.Success)
			assert.NotNil(t, scheme.Warn)
			assert.NotNil(t, scheme.Error)
			assert.NotNil(t, scheme.Highlight)
		})
	}

	assert.Equal(t, "plain", NoColorScheme().Error.Sprint("plain"))
}

func TestIcons(t *testing.T) {
	assert.Equal(t, "✓", SuccessIcon(true))
	assert.Equal(t, "✗", ErrorIcon(true))
	assert.Equal(t, "ℹ", InfoIcon(true))
	assert.Equal(t, "⚠", WarningIcon(true))

	assert.Contains(t, SuccessIcon(false), "✓")
	assert.Contains(t, ErrorIcon(false), "✗")
}

func TestColorEnabled(t *testing.T) {
	assert.False(t, ColorEnabled(os.Stderr, true))
	assert.False(t, ColorEnabled(nil, false))

	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()
	assert.False(t, ColorEnabled(f, false), "regular files are not terminals")
}
