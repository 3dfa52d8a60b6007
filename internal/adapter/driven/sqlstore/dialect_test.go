package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFromDriver(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "", want: "sqlite"},
		{driver: "sqlite", want: "sqlite"},
		{driver: "SQLite3", want: "sqlite"},
		{driver: "postgres", want: "postgres"},
		{driver: "pgx", want: "postgres"},
		{driver: "mysql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFromDriver(tt.driver)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestRebind(t *testing.T) {
	query := `SELECT a FROM t WHERE x = ? AND y IN (?, ?)`

	assert.Equal(t, query, sqliteDialect{}.Rebind(query))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`, postgresDialect{}.Rebind(query))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
