package benchmark

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// namePattern is the shape of the NAME part of @NAME@ and @NAME=value@.
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

type keywordKind int

const (
	flagKeyword keywordKind = iota
	valueKeyword
)

var keywords = map[string]keywordKind{
	"ALL_TEXT":  flagKeyword,
	"RECONNECT": flagKeyword,
	"PREPARE":   flagKeyword,
	"PARALLEL":  valueKeyword,
	"EXPECTED":  valueKeyword,
	"NULLCOUNT": valueKeyword,
	"HITCOUNT":  valueKeyword,
}

// Load reads a query file and parses the keywords embedded in it.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read query file %s", path)
	}
	spec, err := Parse(string(data))
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return spec, nil
}

// Parse builds a Spec from query text. The text itself is kept verbatim as the
// query; keywords normally live in SQL comments.
func Parse(text string) (*Spec, error) {
	spec := &Spec{
		Query:    text,
		Parallel: 1,
	}

	for _, kw := range scan(text) {
		if kw.err != nil {
			return nil, kw.err
		}
		name, raw, hasValue := kw.name, kw.value, kw.hasValue

		kind, known := keywords[name]
		if !known {
			return nil, &ConfigError{Keyword: name, Message: "unknown keyword"}
		}

		if kind == flagKeyword {
			if hasValue {
				return nil, &ConfigError{Keyword: name, Message: "does not take a value"}
			}
			switch name {
			case "ALL_TEXT":
				spec.AllText = true
			case "RECONNECT":
				spec.Reconnect = true
			case "PREPARE":
				spec.Prepare = true
			}
			continue
		}

		if !hasValue {
			return nil, &ConfigError{Keyword: name, Message: "requires a value"}
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &ConfigError{Keyword: name, Message: "invalid integer '" + raw + "'"}
		}
		if value < 0 {
			return nil, &ConfigError{Keyword: name, Message: "must not be negative"}
		}

		switch name {
		case "PARALLEL":
			if value < 1 {
				return nil, &ConfigError{Keyword: name, Message: "must be at least 1"}
			}
			spec.Parallel = int(value)
		case "EXPECTED":
			spec.ExpectedRows = &value
		case "NULLCOUNT":
			spec.ExpectedNulls = &value
		case "HITCOUNT":
			spec.ExpectedHits = &value
		}
	}

	return spec, nil
}

type keyword struct {
	name     string
	value    string
	hasValue bool
	err      error
}

// scan pairs at-signs left to right. A span between two at-signs is a keyword
// when its name part is an identifier. A span that only resembles a keyword,
// because it contains '=' or starts with a keyword name, is an error, as is a
// keyword with no closing at-sign. Other spans, such as e-mail addresses in
// string literals, are skipped and their closing at-sign may open the next
// span.
func scan(text string) []keyword {
	var out []keyword
	pos := 0
	for {
		open := strings.IndexByte(text[pos:], '@')
		if open < 0 {
			return out
		}
		start := pos + open + 1
		end := strings.IndexByte(text[start:], '@')
		if end < 0 {
			rest := text[start:]
			if looksLikeKeyword(rest) {
				out = append(out, keyword{err: &ConfigError{Keyword: leadingName(rest), Message: "unterminated keyword, missing closing '@'"}})
			}
			return out
		}
		end += start

		span := text[start:end]
		name, value, hasValue := strings.Cut(span, "=")
		switch {
		case namePattern.MatchString(name):
			out = append(out, keyword{name: name, value: value, hasValue: hasValue})
			pos = end + 1
		case hasValue || looksLikeKeyword(span):
			out = append(out, keyword{err: &ConfigError{Keyword: leadingName(name), Message: "malformed keyword '@" + span + "@'"}})
			return out
		default:
			pos = end
		}
	}
}

func looksLikeKeyword(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	for name := range keywords {
		if strings.HasPrefix(s, name) {
			return true
		}
	}
	return false
}

// leadingName returns the first word of s, cut at '='.
func leadingName(s string) string {
	s, _, _ = strings.Cut(s, "=")
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return strings.TrimSpace(s)
}
