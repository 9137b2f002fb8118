package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/gatekeeper/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestLogRotatorKeepsRecentLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	rotator, err := logger.NewLogRotator(path, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rotator.Close() })

	for i := 1; i <= 6; i++ {
		_, err := fmt.Fprintf(rotator, "line %d\n", i)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"line 4", "line 5", "line 6"}, readLines(t, path))

	_, err = rotator.Write([]byte("line 7\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"line 4", "line 5", "line 6", "line 7"}, readLines(t, path))
}

func TestLogRotatorMultiLineWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	rotator, err := logger.NewLogRotator(path, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rotator.Close() })

	_, err = rotator.Write([]byte("a\nb\n\nc\nd\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "d"}, readLines(t, path))
}

func TestLogRotatorUnlimited(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	rotator, err := logger.NewLogRotator(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rotator.Close() })

	for i := range 10 {
		_, err := fmt.Fprintf(rotator, "line %d\n", i)
		require.NoError(t, err)
	}

	assert.Len(t, readLines(t, path), 10)
}
