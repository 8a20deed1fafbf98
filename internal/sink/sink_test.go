package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	at := time.Date(2026, 8, 23, 14, 30, 5, 0, time.Local)
	return func() time.Time { return at }
}

func TestAppendMirrorsConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.txt")
	var console bytes.Buffer

	a, err := Open(path, &console)
	require.NoError(t, err)
	a.now = fixedClock(t)

	a.Append("USB Device Plugged In: \\\\?\\USB#VID_1234")
	a.Append("Volume/Drive Removed.")
	require.NoError(t, a.Close())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, console.String(), string(onDisk), "console mirror and file must be byte-identical")

	lines := strings.Split(strings.TrimRight(string(onDisk), "\n"), "\n")
	require.Len(t, lines, 2)
	prefix := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] `)
	for _, line := range lines {
		assert.Regexp(t, prefix, line)
	}
	assert.Equal(t, "[2026-08-23 14:30:05] Volume/Drive Removed.", lines[1])
}

func TestAppendPreservesHistoryAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.txt")

	first, err := Open(path, &bytes.Buffer{})
	require.NoError(t, err)
	first.Append("run one, line one")
	first.Append("run one, line two")
	require.NoError(t, first.Close())

	second, err := Open(path, &bytes.Buffer{})
	require.NoError(t, err)
	second.Append("run two, line one")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"), "restart must append, never truncate")
	assert.Contains(t, string(data), "run one, line one")
	assert.Contains(t, string(data), "run two, line one")
}

func TestAppendDegradesToConsoleOnWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.txt")
	var console bytes.Buffer

	a, err := Open(path, &console)
	require.NoError(t, err)
	a.now = fixedClock(t)

	// 在底层把句柄关掉,制造一次写失败
	require.NoError(t, a.file.Close())

	a.Append("first line after failure")
	assert.Contains(t, console.String(), "first line after failure")
	assert.Contains(t, console.String(), "FATAL: Failed to write to log file")
	assert.Nil(t, a.file, "sink must drop the handle and go console-only")

	console.Reset()
	a.Append("second line, console-only")
	assert.Equal(t, "[2026-08-23 14:30:05] second line, console-only\n", console.String())
	require.NoError(t, a.Close())
}
