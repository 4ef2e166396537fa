// Package containers inspects and stops the containers a restoration leaves running.
package containers

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

// stopTimeout is how long Docker waits before killing a stopping container
const stopTimeout = 30 // seconds

// DockerAPI is the subset of the Docker client used here
type DockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	Close() error
}

// Inspector answers questions about restored backups from running containers.
// Restored backups run as <prefix><YYYYMMDD>-<service>, e.g. yesterday-20251031-db.
type Inspector struct {
	api      DockerAPI
	prefix   string
	services []string
	idRegexp *regexp.Regexp
	logger   zerolog.Logger
}

// NewInspector creates an inspector using the Docker environment of the host
func NewInspector(prefix string, services []string, logger zerolog.Logger) (*Inspector, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return NewInspectorWithAPI(cli, prefix, services, logger), nil
}

// NewInspectorWithAPI creates an inspector with a custom Docker API (for testing)
func NewInspectorWithAPI(api DockerAPI, prefix string, services []string, logger zerolog.Logger) *Inspector {
	return &Inspector{
		api:      api,
		prefix:   prefix,
		services: services,
		idRegexp: regexp.MustCompile("^/?" + regexp.QuoteMeta(prefix) + `(\d{8})`),
		logger:   logger.With().Str("component", "container_inspector").Logger(),
	}
}

// IsLoaded reports whether any container for backupID is running
func (i *Inspector) IsLoaded(ctx context.Context, backupID string) (bool, error) {
	names, err := i.runningNames(ctx, i.prefix+backupID)
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// Loaded returns the identifiers of all running backups, newest first
func (i *Inspector) Loaded(ctx context.Context) ([]string, error) {
	names, err := i.runningNames(ctx, i.prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, name := range names {
		m := i.idRegexp.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Unload stops every service container of backupID. Containers that do not
// exist are skipped; the first other failure is returned.
func (i *Inspector) Unload(ctx context.Context, backupID string) error {
	timeout := stopTimeout
	for _, service := range i.services {
		name := fmt.Sprintf("%s%s-%s", i.prefix, backupID, service)

		err := i.api.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeout})
		if err != nil {
			if client.IsErrNotFound(err) {
				i.logger.Debug().Str("container", name).Msg("Container not found, skipping")
				continue
			}
			return fmt.Errorf("failed to stop container %s: %w", name, err)
		}

		i.logger.Info().Str("container", name).Msg("Container stopped")
	}
	return nil
}

// Close releases the Docker client
func (i *Inspector) Close() error {
	return i.api.Close()
}

func (i *Inspector) runningNames(ctx context.Context, nameFilter string) ([]string, error) {
	list, err := i.api.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", nameFilter)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var names []string
	for _, c := range list {
		for _, name := range c.Names {
			// Docker's name filter is a substring match; keep prefix matches only.
			if strings.HasPrefix(strings.TrimPrefix(name, "/"), nameFilter) {
				names = append(names, name)
			}
		}
	}
	return names, nil
}
