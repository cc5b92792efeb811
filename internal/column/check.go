package column

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/wesleyorama2/clientbench/internal/db"
)

// Verdict is the outcome of checking one value.
type Verdict struct {
	Null bool
	Hit  bool
}

// Checker owns a typed scan destination for one column. Check inspects the
// value most recently scanned into Dest.
type Checker interface {
	Dest() any
	Check() Verdict
}

// Registry builds a fresh Checker per column for each kind.
type Registry map[Kind]func() Checker

// Sentinel values. A value equal to its sentinel is a hit; hits force the
// database to materialize every value instead of discarding the result.
var (
	hitDecimal = decimal.NewFromInt(1)
	hitUUID    = uuid.MustParse("12345678-1234-5678-1234-567812345678")
	utcPlusOne = time.FixedZone("UTC+1", 60*60)
)

const (
	hitInteger       = 42
	hitFloat         = 42.0
	hitMinute        = 42
	hitDayOfMonth    = 14
	hitIntervalDays  = 42
	minHitTextLength = 5
)

// DefaultRegistry returns the checkers for every kind.
func DefaultRegistry() Registry {
	return Registry{
		Integer:     func() Checker { return &intChecker{} },
		String:      func() Checker { return &stringChecker{} },
		Blob:        func() Checker { return &blobChecker{} },
		Bool:        func() Checker { return &boolChecker{} },
		Date:        func() Checker { return &timeChecker{hit: func(t time.Time) bool { return t.Day() == hitDayOfMonth }} },
		Decimal:     func() Checker { return &decimalChecker{} },
		Float:       func() Checker { return &floatChecker{} },
		IntervalDay: func() Checker { return &intervalChecker{} },
		Time:        func() Checker { return &clockChecker{} },
		TimeTz:      func() Checker { return &clockChecker{} },
		Timestamp:   func() Checker { return &timeChecker{hit: func(t time.Time) bool { return t.Minute() == hitMinute }} },
		TimestampTz: func() Checker {
			return &timeChecker{hit: func(t time.Time) bool { return t.In(utcPlusOne).Minute() == hitMinute }}
		},
		UUID: func() Checker { return &uuidChecker{} },
	}
}

type intChecker struct{ v sql.NullInt64 }

func (c *intChecker) Dest() any { return &c.v }
func (c *intChecker) Check() Verdict {
	return Verdict{Null: !c.v.Valid, Hit: c.v.Valid && c.v.Int64 == hitInteger}
}

type stringChecker struct{ v sql.NullString }

func (c *stringChecker) Dest() any { return &c.v }
func (c *stringChecker) Check() Verdict {
	return Verdict{Null: !c.v.Valid, Hit: c.v.Valid && utf8.RuneCountInString(c.v.String) >= minHitTextLength}
}

// blobChecker scans into a byte slice; drivers leave it nil for NULL.
type blobChecker struct{ v []byte }

func (c *blobChecker) Dest() any { return &c.v }
func (c *blobChecker) Check() Verdict {
	return Verdict{Null: c.v == nil, Hit: len(c.v) >= minHitTextLength}
}

type boolChecker struct{ v sql.NullBool }

func (c *boolChecker) Dest() any { return &c.v }
func (c *boolChecker) Check() Verdict {
	return Verdict{Null: !c.v.Valid, Hit: c.v.Valid && c.v.Bool}
}

type floatChecker struct{ v sql.NullFloat64 }

func (c *floatChecker) Dest() any { return &c.v }
func (c *floatChecker) Check() Verdict {
	return Verdict{Null: !c.v.Valid, Hit: c.v.Valid && c.v.Float64 == hitFloat}
}

type decimalChecker struct{ v decimal.NullDecimal }

func (c *decimalChecker) Dest() any { return &c.v }
func (c *decimalChecker) Check() Verdict {
	return Verdict{Null: !c.v.Valid, Hit: c.v.Valid && c.v.Decimal.Equal(hitDecimal)}
}

type uuidChecker struct{ v uuid.NullUUID }

func (c *uuidChecker) Dest() any { return &c.v }
func (c *uuidChecker) Check() Verdict {
	return Verdict{Null: !c.v.Valid, Hit: c.v.Valid && c.v.UUID == hitUUID}
}

type timeChecker struct {
	v   sql.NullTime
	hit func(time.Time) bool
}

func (c *timeChecker) Dest() any { return &c.v }
func (c *timeChecker) Check() Verdict {
	return Verdict{Null: !c.v.Valid, Hit: c.v.Valid && c.hit(c.v.Time)}
}

// clockChecker reads a time of day as text ("HH:MM:SS[.ffffff][+tz]"), the
// only representation every driver agrees on.
type clockChecker struct{ v sql.NullString }

func (c *clockChecker) Dest() any { return &c.v }
func (c *clockChecker) Check() Verdict {
	if !c.v.Valid {
		return Verdict{Null: true}
	}
	m, ok := minuteOf(c.v.String)
	return Verdict{Hit: ok && m == hitMinute}
}

func minuteOf(clock string) (int, bool) {
	parts := strings.SplitN(clock, ":", 3)
	if len(parts) < 2 || len(parts[1]) < 2 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1][:2])
	return m, err == nil
}

// intervalChecker reads a day interval as text. Postgres renders "42 days" or
// "42 days 01:00:00"; MySQL and SQLite have no interval type and return a
// number of seconds.
type intervalChecker struct{ v sql.NullString }

func (c *intervalChecker) Dest() any { return &c.v }
func (c *intervalChecker) Check() Verdict {
	if !c.v.Valid {
		return Verdict{Null: true}
	}
	return Verdict{Hit: isIntervalHit(c.v.String)}
}

func isIntervalHit(s string) bool {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return secs == hitIntervalDays*24*60*60
	}
	fields := strings.Fields(s)
	if len(fields) < 2 || !strings.HasPrefix(fields[1], "day") {
		return false
	}
	days, err := strconv.Atoi(fields[0])
	return err == nil && days == hitIntervalDays
}

// Counts is the running tally of one execution.
type Counts struct {
	Rows  int64
	Nulls int64
	Hits  int64
}

// RowValidator scans and checks every row of a result. It is built once per
// session from the resolved kinds and reused for every execution.
type RowValidator struct {
	checkers []Checker
	dests    []any
}

// NewRowValidator looks up one checker per column.
func NewRowValidator(kinds []Kind, reg Registry) (*RowValidator, error) {
	v := &RowValidator{
		checkers: make([]Checker, len(kinds)),
		dests:    make([]any, len(kinds)),
	}
	for i, k := range kinds {
		factory, ok := reg[k]
		if !ok {
			return nil, errors.Errorf("no checker registered for %s column %d", k, i)
		}
		v.checkers[i] = factory()
		v.dests[i] = v.checkers[i].Dest()
	}
	return v, nil
}

// Consume reads rows to the end. It does not close rows.
func (v *RowValidator) Consume(rows db.Rows) (Counts, error) {
	var c Counts
	for rows.Next() {
		if err := rows.Scan(v.dests...); err != nil {
			return c, errors.Wrapf(err, "scan row %d", c.Rows+1)
		}
		c.Rows++
		for _, chk := range v.checkers {
			verdict := chk.Check()
			if verdict.Null {
				c.Nulls++
			}
			if verdict.Hit {
				c.Hits++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return c, errors.Wrap(err, "read rows")
	}
	return c, nil
}
