package restore

// Status represents the current phase of a restoration job
type Status string

const (
	// StatusStarting indicates the job was accepted and the script has not reported a milestone yet
	StatusStarting Status = "starting"

	// StatusDownloading indicates the archive is being fetched from the bucket
	StatusDownloading Status = "downloading"

	// StatusExtracting indicates the xbstream archive is being unpacked
	StatusExtracting Status = "extracting"

	// StatusPreparing indicates the backup logs are being applied
	StatusPreparing Status = "preparing"

	// StatusImporting indicates the restored data is being copied into place
	StatusImporting Status = "importing"

	// StatusStartingServices indicates the database container is being started
	StatusStartingServices Status = "starting_services"

	// StatusCompleted indicates the restoration finished successfully
	StatusCompleted Status = "completed"

	// StatusFailed indicates the restoration failed
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status represents a final state
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsRunning returns true if the restoration is still in progress
func (s Status) IsRunning() bool {
	return !s.IsTerminal()
}
