// Package column classifies result columns into a closed set of kinds and
// validates row values per kind.
package column

import (
	"fmt"
	"strings"

	"github.com/wesleyorama2/clientbench/internal/db"
)

// Kind is the validation class of a result column.
type Kind int

const (
	Invalid Kind = iota
	Integer
	String
	Blob
	Bool
	Date
	Decimal
	Float
	IntervalDay
	Time
	TimeTz
	Timestamp
	TimestampTz
	UUID
)

var kindNames = [...]string{
	Invalid:     "invalid",
	Integer:     "integer",
	String:      "string",
	Blob:        "blob",
	Bool:        "bool",
	Date:        "date",
	Decimal:     "decimal",
	Float:       "float",
	IntervalDay: "interval",
	Time:        "time",
	TimeTz:      "timetz",
	Timestamp:   "timestamp",
	TimestampTz: "timestamptz",
	UUID:        "uuid",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Driver type names, normalized, for every dialect the db adapters speak.
var typeKinds = map[string]Kind{
	"TINYINT": Integer, "SMALLINT": Integer, "MEDIUMINT": Integer, "INT": Integer,
	"INTEGER": Integer, "BIGINT": Integer, "HUGEINT": Integer, "INT2": Integer,
	"INT4": Integer, "INT8": Integer, "SERIAL": Integer, "BIGSERIAL": Integer,
	"YEAR": Integer,

	"CHAR": String, "VARCHAR": String, "TEXT": String, "CLOB": String,
	"BPCHAR": String, "NAME": String, "NCHAR": String, "NVARCHAR": String,
	"TINYTEXT": String, "MEDIUMTEXT": String, "LONGTEXT": String,
	"JSON": String, "JSONB": String, "ENUM": String, "SET": String,
	"CHARACTER VARYING": String, "CHARACTER": String,

	"BLOB": Blob, "BYTEA": Blob, "BINARY": Blob, "VARBINARY": Blob,
	"TINYBLOB": Blob, "MEDIUMBLOB": Blob, "LONGBLOB": Blob,

	"BOOL": Bool, "BOOLEAN": Bool,

	"DATE": Date,

	"DECIMAL": Decimal, "NUMERIC": Decimal, "DEC": Decimal,

	"REAL": Float, "FLOAT": Float, "FLOAT4": Float, "FLOAT8": Float,
	"DOUBLE": Float, "DOUBLE PRECISION": Float,

	"INTERVAL": IntervalDay, "DAY_INTERVAL": IntervalDay, "SEC_INTERVAL": IntervalDay,

	"TIME": Time, "TIME WITHOUT TIME ZONE": Time,
	"TIMETZ": TimeTz, "TIME WITH TIME ZONE": TimeTz,

	"TIMESTAMP": Timestamp, "DATETIME": Timestamp, "TIMESTAMP WITHOUT TIME ZONE": Timestamp,
	"TIMESTAMPTZ": TimestampTz, "TIMESTAMP WITH TIME ZONE": TimestampTz,

	"UUID": UUID,
}

// normalize upper-cases a driver type name and drops precision arguments and
// signedness, so "unsigned int(10)" and "INT UNSIGNED" both become "INT".
func normalize(databaseType string) string {
	t := strings.ToUpper(strings.TrimSpace(databaseType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")
	return t
}

// KindForType maps a driver type name to its kind.
func KindForType(databaseType string) (Kind, bool) {
	k, ok := typeKinds[normalize(databaseType)]
	return k, ok
}

// UnsupportedTypeError reports a result column whose type has no kind.
type UnsupportedTypeError struct {
	Index  int
	Column db.Column
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %q of column %d (%s)", e.Column.DatabaseType, e.Index, e.Column.Name)
}

// Resolve maps result columns to kinds. With allText every column is a String
// regardless of its type.
func Resolve(cols []db.Column, allText bool) ([]Kind, error) {
	kinds := make([]Kind, len(cols))
	for i, c := range cols {
		if allText {
			kinds[i] = String
			continue
		}
		k, ok := KindForType(c.DatabaseType)
		if !ok {
			return nil, &UnsupportedTypeError{Index: i, Column: c}
		}
		kinds[i] = k
	}
	return kinds, nil
}
