package restore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// maxLineSize bounds a single line of script output. Longer lines are truncated.
const maxLineSize = 1024 * 1024 // 1MB

// Runner launches the restore script for a backup
type Runner interface {
	// Run starts the script. An error means the process could not be launched.
	Run(ctx context.Context, backupID string) (Process, error)
}

// Process is a running restore script
type Process interface {
	// Lines yields the merged stdout/stderr of the script in the order it was
	// written. The sequence can only be consumed once. A read error is
	// yielded as the final element.
	Lines() iter.Seq2[string, error]

	// Wait blocks until the script exits and returns its exit code. It must
	// be called after Lines has been drained.
	Wait() (int, error)
}

// ScriptRunner runs an executable on the local host with the backup identifier as its only argument
type ScriptRunner struct {
	scriptPath string
	logger     zerolog.Logger
}

// NewScriptRunner creates a runner for the script at scriptPath
func NewScriptRunner(scriptPath string, logger zerolog.Logger) *ScriptRunner {
	return &ScriptRunner{
		scriptPath: scriptPath,
		logger:     logger.With().Str("component", "restore_runner").Logger(),
	}
}

// Run starts the restore script with stdout and stderr sharing one pipe
func (r *ScriptRunner) Run(ctx context.Context, backupID string) (Process, error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.scriptPath, backupID)
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("failed to start restore script %s: %w", r.scriptPath, err)
	}

	// The child holds its own copy of the write end; closing ours lets the
	// reader see EOF once the script exits.
	_ = writer.Close()

	r.logger.Info().
		Str("backup_id", backupID).
		Str("script", r.scriptPath).
		Int("pid", cmd.Process.Pid).
		Msg("Restore script started")

	return &scriptProcess{cmd: cmd, output: reader}, nil
}

// scriptProcess adapts an exec.Cmd to Process
type scriptProcess struct {
	cmd      *exec.Cmd
	output   *os.File
	consumed sync.Once
}

func (p *scriptProcess) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		first := false
		p.consumed.Do(func() { first = true })
		if !first {
			yield("", errors.New("process output already consumed"))
			return
		}
		defer p.output.Close()

		reader := bufio.NewReaderSize(p.output, 64*1024)
		var line []byte
		for {
			chunk, isPrefix, err := reader.ReadLine()
			if err != nil {
				if errors.Is(err, io.EOF) {
					if len(line) > 0 {
						yield(strings.TrimSpace(string(line)), nil)
					}
					return
				}
				yield("", fmt.Errorf("failed to read restore output: %w", err))
				return
			}

			// Anything past maxLineSize is dropped; the line itself is still yielded.
			if room := maxLineSize - len(line); room > 0 {
				line = append(line, chunk[:min(len(chunk), room)]...)
			}
			if isPrefix {
				continue
			}

			if !yield(strings.TrimSpace(string(line)), nil) {
				return
			}
			line = line[:0]
		}
	}
}

func (p *scriptProcess) Wait() (int, error) {
	// Unblocks a child still writing if Lines was abandoned early.
	_ = p.output.Close()

	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("failed to wait for restore script: %w", err)
}
