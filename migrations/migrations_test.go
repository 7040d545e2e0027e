package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	for _, dir := range []string{"mysql", "clickhouse"} {
		files, err := fs.Glob(FS, dir+"/*.sql")
		require.NoError(t, err)
		require.NotEmpty(t, files, dir)

		for _, f := range files {
			b, err := FS.ReadFile(f)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(b), "-- +goose Up"), f)
			assert.Contains(t, string(b), "-- +goose Down", f)
		}
	}
}
