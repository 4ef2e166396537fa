package commands

import (
	"io"
	"os"

	"github.com/yesterday-dev/yesterday/internal/cli/client"
)

// DefaultServer is used when neither --server nor YESTERDAY_SERVER is set
const DefaultServer = "localhost:8082"

// API is the subset of the HTTP client the commands rely on
type API interface {
	ListBackups(refresh bool) ([]client.Backup, error)
	LoadBackup(backupID string) (*client.LoadResponse, error)
	Progress(backupID string) (*client.Job, error)
	UnloadBackup(backupID string) error
	LoadedBackups() ([]string, error)
	Restorations() ([]client.Job, error)
}

// Options carries the global flags every command shares
type Options struct {
	Server string
	Out    io.Writer

	// NewClient is overridden in tests
	NewClient func(server string) API
}

// NewOptions returns options pointing at YESTERDAY_SERVER, or DefaultServer
func NewOptions() *Options {
	server := os.Getenv("YESTERDAY_SERVER")
	if server == "" {
		server = DefaultServer
	}
	return &Options{
		Server: server,
		Out:    os.Stdout,
		NewClient: func(server string) API {
			return client.New(server)
		},
	}
}

func (o *Options) api() API {
	return o.NewClient(o.Server)
}
