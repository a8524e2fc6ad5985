package rensenlog_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gingapard/rensen/internal/rensenerr"
	"github.com/gingapard/rensen/internal/rensenlog"
)

var lineRE = regexp.MustCompile(`^\[.+\] (\w+): (.+)\n$`)

func TestOpenCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "rensen.log")

	logger, err := rensenlog.Open(path)
	require.NoError(t, err)
	require.NoError(t, logger.Sync())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestErrorLogsKindAndMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rensen.log")

	logger, err := rensenlog.Open(path)
	require.NoError(t, err)
	logger.Error(rensenerr.Connect, "dial %s failed", "10.0.0.5:22")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	m := lineRE.FindStringSubmatch(string(raw))
	require.NotNil(t, m, "log line %q did not match the expected format", raw)
	require.Equal(t, "Connect", m[1])
	require.Equal(t, "dial 10.0.0.5:22 failed", m[2])
}

func TestInfoLogsInfoKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rensen.log")

	logger, err := rensenlog.Open(path)
	require.NoError(t, err)
	logger.Info("run started for %s", "edge")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	m := lineRE.FindStringSubmatch(string(raw))
	require.NotNil(t, m)
	require.Equal(t, "Info", m[1])
	require.Equal(t, "run started for edge", m[2])
}

func TestOpenAppendsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rensen.log")

	first, err := rensenlog.Open(path)
	require.NoError(t, err)
	first.Warn(rensenerr.Scheduler, "first line")
	require.NoError(t, first.Sync())

	second, err := rensenlog.Open(path)
	require.NoError(t, err)
	second.Warn(rensenerr.Scheduler, "second line")
	require.NoError(t, second.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, regexp.MustCompile(`\n`).FindAllString(string(raw), -1), 2)
}

func TestDiscardDropsEverything(t *testing.T) {
	logger := rensenlog.Discard()
	logger.Error(rensenerr.FS, "should not panic or write anywhere")
	require.NoError(t, logger.Sync())
}
