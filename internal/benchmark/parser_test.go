package benchmark

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	spec, err := Parse("SELECT 42")
	require.NoError(t, err)

	assert.Equal(t, "SELECT 42", spec.Query)
	assert.Equal(t, 1, spec.Parallel)
	assert.False(t, spec.AllText)
	assert.False(t, spec.Reconnect)
	assert.False(t, spec.Prepare)
	assert.False(t, spec.HasExpectations())
}

func TestParse_Keywords(t *testing.T) {
	text := `-- Result set with 10 int columns
-- @EXPECTED=100000@ @NULLCOUNT=0@ @HITCOUNT=10@
-- @PARALLEL=4@ @PREPARE@ @RECONNECT@ @ALL_TEXT@
SELECT i FROM tall;
`
	spec, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, text, spec.Query)
	assert.True(t, spec.AllText)
	assert.True(t, spec.Reconnect)
	assert.True(t, spec.Prepare)
	assert.Equal(t, 4, spec.Parallel)
	require.NotNil(t, spec.ExpectedRows)
	require.NotNil(t, spec.ExpectedNulls)
	require.NotNil(t, spec.ExpectedHits)
	assert.EqualValues(t, 100000, *spec.ExpectedRows)
	assert.EqualValues(t, 0, *spec.ExpectedNulls)
	assert.EqualValues(t, 10, *spec.ExpectedHits)
	assert.True(t, spec.HasExpectations())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		keyword string
	}{
		{"unknown keyword", "-- @FOO@\nSELECT 1", "FOO"},
		{"flag with value", "-- @PREPARE=1@", "PREPARE"},
		{"value missing", "-- @EXPECTED@", "EXPECTED"},
		{"value not a number", "-- @PARALLEL=four@", "PARALLEL"},
		{"empty value", "-- @HITCOUNT=@", "HITCOUNT"},
		{"zero parallel", "-- @PARALLEL=0@", "PARALLEL"},
		{"negative count", "-- @NULLCOUNT=-1@", "NULLCOUNT"},
		{"spaces around equals", "-- @EXPECTED = 5@\nSELECT 1", "EXPECTED"},
		{"space before closing", "-- @EXPECTED=5 @\nSELECT 1", "EXPECTED"},
		{"unterminated", "-- @EXPECTED=5\nSELECT 1", "EXPECTED"},
		{"space after opening", "-- @ PARALLEL=3@\nSELECT 1", "PARALLEL"},
		{"unterminated flag", "-- @PREPARE\nSELECT 1", "PREPARE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.keyword, cfgErr.Keyword)
		})
	}
}

func TestParse_IgnoresNonKeywordAtSigns(t *testing.T) {
	spec, err := Parse("SELECT 'someone@example.com' AS mail")
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Parallel)

	spec, err = Parse("SELECT 'a@example.com', 'b@example.com'")
	require.NoError(t, err)
	assert.False(t, spec.HasExpectations())

	spec, err = Parse("SELECT 'someone@example.com' -- @EXPECTED=1@ @PARALLEL=2@")
	require.NoError(t, err)
	require.NotNil(t, spec.ExpectedRows)
	assert.EqualValues(t, 1, *spec.ExpectedRows)
	assert.Equal(t, 2, spec.Parallel)
}

func TestSpec_Keywords(t *testing.T) {
	spec, err := Parse("-- @PARALLEL=2@ @EXPECTED=5@ @ALL_TEXT@")
	require.NoError(t, err)
	assert.Equal(t, "@ALL_TEXT@ @PARALLEL=2@ @EXPECTED=5@", spec.Keywords())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("-- @RECONNECT@\nSELECT 1"), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	assert.True(t, spec.Reconnect)

	_, err = Load(filepath.Join(dir, "missing.sql"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.sql")
	require.NoError(t, os.WriteFile(bad, []byte("-- @NOPE@"), 0o644))
	_, err = Load(bad)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{" 2 ", 2 * time.Second, false},
		{"90s", 90 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"0", 0, false},
		{"-1", -time.Second, false},
		{"soon", 0, true},
		{"NaN", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
