package column

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/clientbench/internal/db"
	"github.com/wesleyorama2/clientbench/internal/db/dbtest"
)

// consume runs rows of a single column through a validator for kind.
func consume(t *testing.T, kind Kind, values ...any) Counts {
	t.Helper()

	result := dbtest.Result{Columns: []db.Column{{Name: "v", DatabaseType: kind.String()}}}
	for _, v := range values {
		result.Rows = append(result.Rows, []any{v})
	}

	conn, err := dbtest.New(result).Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.Query(context.Background(), "SELECT v")
	require.NoError(t, err)
	defer rows.Close()

	v, err := NewRowValidator([]Kind{kind}, DefaultRegistry())
	require.NoError(t, err)

	counts, err := v.Consume(rows)
	require.NoError(t, err)
	return counts
}

func TestCheckers(t *testing.T) {
	minute42 := time.Date(2024, 3, 1, 10, 42, 0, 0, time.UTC)
	minute7 := time.Date(2024, 3, 1, 10, 7, 0, 0, time.UTC)

	tests := []struct {
		kind   Kind
		values []any
		want   Counts
	}{
		{Integer, []any{int64(42), int64(41), nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
		{String, []any{"short", "abc", "", nil}, Counts{Rows: 4, Nulls: 1, Hits: 1}},
		{String, []any{"héllo", "héll"}, Counts{Rows: 2, Hits: 1}},
		{Blob, []any{[]byte("12345"), []byte("1234"), nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
		{Bool, []any{true, false, nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
		{Date, []any{time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)}, Counts{Rows: 2, Hits: 1}},
		{Decimal, []any{"1.000", "42.5", nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
		{Float, []any{42.0, 41.99, nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
		{IntervalDay, []any{"42 days", "42 days 01:00:00", "41 days", "3628800", nil}, Counts{Rows: 5, Nulls: 1, Hits: 3}},
		{Time, []any{"10:42:00", "10:07:00", nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
		{TimeTz, []any{"10:42:00.5+02", "bogus"}, Counts{Rows: 2, Hits: 1}},
		{Timestamp, []any{minute42, minute7, nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
		{TimestampTz, []any{minute42, minute7}, Counts{Rows: 2, Hits: 1}},
		{UUID, []any{"12345678-1234-5678-1234-567812345678", "00000000-0000-0000-0000-000000000000", nil}, Counts{Rows: 3, Nulls: 1, Hits: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, consume(t, tt.kind, tt.values...))
		})
	}
}

func TestDefaultRegistry_CoversEveryKind(t *testing.T) {
	reg := DefaultRegistry()
	for k := Integer; k <= UUID; k++ {
		factory, ok := reg[k]
		require.True(t, ok, "no checker for %s", k)
		assert.NotNil(t, factory().Dest())
	}
}

func TestNewRowValidator_MissingChecker(t *testing.T) {
	_, err := NewRowValidator([]Kind{Integer, UUID}, Registry{
		Integer: DefaultRegistry()[Integer],
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uuid column 1")
}

func TestRowValidator_ScanError(t *testing.T) {
	conn, err := dbtest.New(dbtest.Result{
		Columns: []db.Column{dbtest.IntColumn("n")},
		Rows:    [][]any{{"not a number"}},
	}).Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.Query(context.Background(), "SELECT n")
	require.NoError(t, err)
	defer rows.Close()

	v, err := NewRowValidator([]Kind{Integer}, DefaultRegistry())
	require.NoError(t, err)

	_, err = v.Consume(rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan row 1")
}
