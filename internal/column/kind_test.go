package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/clientbench/internal/db"
)

func TestKindForType(t *testing.T) {
	tests := []struct {
		typeName string
		want     Kind
	}{
		{"int4", Integer},
		{"BIGINT", Integer},
		{"UNSIGNED INT", Integer},
		{"int(10) unsigned", Integer},
		{"varchar(255)", String},
		{"bpchar", String},
		{"TEXT", String},
		{"bytea", Blob},
		{"LONGBLOB", Blob},
		{"bool", Bool},
		{"date", Date},
		{"numeric(10,2)", Decimal},
		{"DECIMAL", Decimal},
		{"float8", Float},
		{"double precision", Float},
		{"interval", IntervalDay},
		{"time", Time},
		{"timetz", TimeTz},
		{"time with time zone", TimeTz},
		{"timestamp", Timestamp},
		{"DATETIME", Timestamp},
		{"timestamptz", TimestampTz},
		{"uuid", UUID},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			got, ok := KindForType(tt.typeName)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := KindForType("GEOMETRY")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	cols := []db.Column{
		{Name: "id", DatabaseType: "INTEGER"},
		{Name: "payload", DatabaseType: "BYTEA"},
	}

	kinds, err := Resolve(cols, false)
	require.NoError(t, err)
	assert.Equal(t, []Kind{Integer, Blob}, kinds)

	kinds, err = Resolve(cols, true)
	require.NoError(t, err)
	assert.Equal(t, []Kind{String, String}, kinds)
}

func TestResolve_UnsupportedType(t *testing.T) {
	cols := []db.Column{
		{Name: "id", DatabaseType: "INTEGER"},
		{Name: "shape", DatabaseType: "geometry"},
	}

	_, err := Resolve(cols, false)
	require.Error(t, err)

	var typeErr *UnsupportedTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, 1, typeErr.Index)
	assert.Contains(t, err.Error(), "shape")
	assert.Contains(t, err.Error(), "geometry")

	// Forcing text accepts anything.
	_, err = Resolve(cols, true)
	assert.NoError(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "timestamptz", TimestampTz.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
	assert.Equal(t, "uuid", UUID.String())
}
