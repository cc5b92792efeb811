// Package benchmark holds the benchmark definition shared by every worker of a run
// and the parser that extracts it from a query file.
package benchmark

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Spec is a parsed benchmark. It is built once at startup and only read afterwards,
// so it is safe to share between workers without synchronization.
type Spec struct {
	// Query is the full text of the query file, keywords included.
	Query string

	// AllText forces every result column to be validated as a string.
	AllText bool

	// Reconnect tears the session down before every iteration.
	Reconnect bool

	// Prepare executes the query through a prepared statement.
	Prepare bool

	// Parallel is the number of concurrent workers.
	Parallel int

	// Optional expectations, nil when absent.
	ExpectedRows  *int64
	ExpectedNulls *int64
	ExpectedHits  *int64
}

// HasExpectations reports whether any row, null or hit count is checked.
func (s *Spec) HasExpectations() bool {
	return s.ExpectedRows != nil || s.ExpectedNulls != nil || s.ExpectedHits != nil
}

// Keywords renders the options back in query-file syntax, mostly for logging.
func (s *Spec) Keywords() string {
	var parts []string
	if s.AllText {
		parts = append(parts, "@ALL_TEXT@")
	}
	if s.Reconnect {
		parts = append(parts, "@RECONNECT@")
	}
	if s.Prepare {
		parts = append(parts, "@PREPARE@")
	}
	if s.Parallel != 1 {
		parts = append(parts, fmt.Sprintf("@PARALLEL=%d@", s.Parallel))
	}
	if s.ExpectedRows != nil {
		parts = append(parts, fmt.Sprintf("@EXPECTED=%d@", *s.ExpectedRows))
	}
	if s.ExpectedNulls != nil {
		parts = append(parts, fmt.Sprintf("@NULLCOUNT=%d@", *s.ExpectedNulls))
	}
	if s.ExpectedHits != nil {
		parts = append(parts, fmt.Sprintf("@HITCOUNT=%d@", *s.ExpectedHits))
	}
	return strings.Join(parts, " ")
}

// ConfigError reports a malformed keyword in a query file.
type ConfigError struct {
	Keyword string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Keyword == "" {
		return "invalid benchmark: " + e.Message
	}
	return "invalid benchmark keyword '" + e.Keyword + "': " + e.Message
}

// ParseDuration accepts a number of seconds ("30", "0.5") or a Go duration
// ("90s", "2m").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, errors.Errorf("invalid duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Errorf("invalid duration %q: want seconds or a value like 90s", s)
	}
	return d, nil
}
