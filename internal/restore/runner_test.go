package restore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "restore-backup.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func drain(t *testing.T, proc Process) []string {
	t.Helper()
	var lines []string
	for line, err := range proc.Lines() {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	return lines
}

func TestScriptRunner_MergesOutputInOrder(t *testing.T) {
	script := writeScript(t, `echo "Downloading backup $1"
echo "  Extracting xbstream  " 1>&2
echo "Preparing backup"
exit 0
`)

	runner := NewScriptRunner(script, zerolog.Nop())
	proc, err := runner.Run(context.Background(), "20251031")
	require.NoError(t, err)

	lines := drain(t, proc)
	assert.Equal(t, []string{"Downloading backup 20251031", "Extracting xbstream", "Preparing backup"}, lines)

	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestScriptRunner_NonZeroExit(t *testing.T) {
	script := writeScript(t, "echo \"Downloading backup\"\nexit 7\n")

	proc, err := NewScriptRunner(script, zerolog.Nop()).Run(context.Background(), "20251031")
	require.NoError(t, err)

	drain(t, proc)
	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestScriptRunner_LaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.sh")

	proc, err := NewScriptRunner(missing, zerolog.Nop()).Run(context.Background(), "20251031")
	assert.Error(t, err)
	assert.Nil(t, proc)
}

func TestScriptRunner_SingleConsumption(t *testing.T) {
	script := writeScript(t, "echo one\n")

	proc, err := NewScriptRunner(script, zerolog.Nop()).Run(context.Background(), "20251031")
	require.NoError(t, err)

	assert.Equal(t, []string{"one"}, drain(t, proc))

	var secondErr error
	for _, err := range proc.Lines() {
		secondErr = err
	}
	assert.Error(t, secondErr)

	_, err = proc.Wait()
	require.NoError(t, err)
}

func TestController_WithScriptRunner(t *testing.T) {
	script := writeScript(t, `echo "Downloading backup iznik-$1.xbstream"
echo "Extracting xbstream"
echo "Preparing backup"
echo "some xtrabackup noise" 1>&2
echo "Copying restored data"
echo "Starting database with restored data"
`)

	ctrl, _ := newTestController(NewScriptRunner(script, zerolog.Nop()), nil, Options{})
	_, err := ctrl.Start(context.Background(), "20251031")
	require.NoError(t, err)
	ctrl.Wait()

	job, err := ctrl.Progress("20251031")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Nil(t, job.Error)
}

func TestScriptRunner_TruncatesOverlongLines(t *testing.T) {
	script := writeScript(t, `printf 'Downloading backup '
head -c 2097152 /dev/zero | tr '\0' 'x'
echo
echo "Preparing backup"
exit 0
`)

	proc, err := NewScriptRunner(script, zerolog.Nop()).Run(context.Background(), "20251031")
	require.NoError(t, err)

	lines := drain(t, proc)
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], maxLineSize)
	assert.True(t, strings.HasPrefix(lines[0], "Downloading backup xxx"))
	assert.Equal(t, "Preparing backup", lines[1])

	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestController_OverlongLineDoesNotFailRestoration(t *testing.T) {
	script := writeScript(t, `head -c 2097152 /dev/zero | tr '\0' 'x'
echo
echo "Copying restored data"
exit 0
`)

	ctrl := NewController(NewStore(), NewScriptRunner(script, zerolog.Nop()), nil, nil, Options{}, zerolog.Nop())
	_, err := ctrl.Start(context.Background(), "20251031")
	require.NoError(t, err)
	ctrl.Wait()

	final, err := ctrl.Progress("20251031")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Nil(t, final.Error)
}
