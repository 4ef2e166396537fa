package archives

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/yesterday-dev/yesterday/internal/models"
)

// Lister enumerates the backup archives in the object store
type Lister interface {
	List(ctx context.Context) ([]models.Archive, error)
}

// CommandRunner executes an external command and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

// GSUtilLister lists archives with `gsutil ls -l`
type GSUtilLister struct {
	bucket string
	run    CommandRunner
	logger zerolog.Logger
}

// NewGSUtilLister creates a lister for bucket. If run is nil gsutil is executed on the host.
func NewGSUtilLister(bucket string, run CommandRunner, logger zerolog.Logger) *GSUtilLister {
	if run == nil {
		run = defaultRunner
	}
	return &GSUtilLister{
		bucket: strings.TrimSuffix(bucket, "/"),
		run:    run,
		logger: logger.With().Str("component", "gsutil_lister").Logger(),
	}
}

func defaultRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s failed: %w (stderr: %s)", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	return string(out), nil
}

// List returns every iznik-*.xbstream archive in the bucket
func (l *GSUtilLister) List(ctx context.Context) ([]models.Archive, error) {
	pattern := fmt.Sprintf("%s/iznik-*.xbstream", l.bucket)

	output, err := l.run(ctx, "gsutil", "ls", "-l", pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	archives := parseListing(output)
	l.logger.Debug().
		Str("bucket", l.bucket).
		Int("archives", len(archives)).
		Msg("Listed backup archives")

	return archives, nil
}

// parseListing parses `gsutil ls -l` output: "<size>  <timestamp>  <url>" per
// object, followed by a TOTAL summary line.
func parseListing(output string) []models.Archive {
	var archives []models.Archive

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "TOTAL:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		size, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}

		url := fields[2]
		filename := path.Base(url)
		backupID, ok := models.ParseBackupID(filename)
		if !ok {
			continue
		}

		archives = append(archives, models.Archive{
			BackupID:  backupID,
			Filename:  filename,
			URL:       url,
			Size:      size,
			SizeHuman: humanize.IBytes(uint64(size)),
			Timestamp: fields[1],
		})
	}

	return archives
}
