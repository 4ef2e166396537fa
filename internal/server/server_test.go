package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yesterday-dev/yesterday/internal/config"
	"github.com/yesterday-dev/yesterday/internal/models"
	"github.com/yesterday-dev/yesterday/internal/restore"
)

type stubCatalog struct {
	archives []models.Archive
	err      error
	forced   bool
}

func (s *stubCatalog) List(ctx context.Context, force bool) ([]models.Archive, error) {
	s.forced = force
	return s.archives, s.err
}

type stubContainers struct {
	loaded    []string
	loadedErr error
	unloadErr error
	unloaded  []string
}

func (s *stubContainers) IsLoaded(ctx context.Context, backupID string) (bool, error) {
	for _, id := range s.loaded {
		if id == backupID {
			return true, nil
		}
	}
	return false, s.loadedErr
}

func (s *stubContainers) Loaded(ctx context.Context) ([]string, error) {
	return s.loaded, s.loadedErr
}

func (s *stubContainers) Unload(ctx context.Context, backupID string) error {
	if s.unloadErr != nil {
		return s.unloadErr
	}
	s.unloaded = append(s.unloaded, backupID)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		HTTP:    config.HTTPConfig{Address: ":0", CORSOrigins: []string{"*"}},
		Restore: config.RestoreConfig{CurrentBackupFile: filepath.Join(t.TempDir(), "current-backup.json")},
	}
}

// newTestServer wires a real controller around a shell script
func newTestServer(t *testing.T, script string, catalog *stubCatalog, docker *stubContainers) (*Server, *restore.Controller) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	path := filepath.Join(t.TempDir(), "restore-backup.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))

	ctrl := restore.NewController(
		restore.NewStore(),
		restore.NewScriptRunner(path, zerolog.Nop()),
		nil,
		docker,
		restore.Options{},
		zerolog.Nop(),
	)
	t.Cleanup(ctrl.Wait)

	srv := newServer(testConfig(t), zerolog.Nop(), "test", Dependencies{
		Restorer:   ctrl,
		Catalog:    catalog,
		Containers: docker,
	})
	return srv, ctrl
}

func do(t *testing.T, srv *Server, method, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

const successScript = `echo "Downloading backup $1"
echo "Extracting xbstream"
echo "Preparing backup"
echo "Copying restored data"
echo "Starting database with restored data"
`

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, &stubContainers{})

	code, body := do(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestLoadAndProgress(t *testing.T) {
	srv, ctrl := newTestServer(t, successScript, &stubCatalog{}, &stubContainers{})

	code, body := do(t, srv, http.MethodPost, "/api/backups/20251031/load")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "starting", body["status"])
	assert.Equal(t, "Started loading backup 20251031", body["message"])

	ctrl.Wait()

	code, body = do(t, srv, http.MethodGet, "/api/backups/20251031/progress")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(100), body["progress"])
	assert.Nil(t, body["error"])
	assert.NotNil(t, body["completed"])
	assert.NotNil(t, body["started"])
	assert.Equal(t, "20251031", body["backup_id"])
}

func TestLoadConflictWhileRunning(t *testing.T) {
	gate := filepath.Join(t.TempDir(), "release")
	script := `while [ ! -f "` + gate + `" ]; do sleep 0.05; done
exit 0
`
	srv, ctrl := newTestServer(t, script, &stubCatalog{}, &stubContainers{})

	code, _ := do(t, srv, http.MethodPost, "/api/backups/20251031/load")
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, srv, http.MethodPost, "/api/backups/20251031/load")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Backup is already being loaded", body["error"])
	assert.Equal(t, "starting", body["status"])
	assert.Equal(t, float64(0), body["progress"])

	require.NoError(t, os.WriteFile(gate, nil, 0644))
	ctrl.Wait()

	code, _ = do(t, srv, http.MethodPost, "/api/backups/20251031/load")
	assert.Equal(t, http.StatusOK, code)
	ctrl.Wait()
}

func TestLoadConflictWhenAlreadyLoaded(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, &stubContainers{loaded: []string{"20251031"}})

	code, body := do(t, srv, http.MethodPost, "/api/backups/20251031/load")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Backup is already loaded", body["error"])
	assert.Equal(t, "running", body["status"])
	_, hasProgress := body["progress"]
	assert.False(t, hasProgress)
}

func TestFailedRestorationIsVisible(t *testing.T) {
	srv, ctrl := newTestServer(t, "echo \"Downloading backup\"\nexit 2\n", &stubCatalog{}, &stubContainers{})

	code, _ := do(t, srv, http.MethodPost, "/api/backups/20251031/load")
	require.Equal(t, http.StatusOK, code)
	ctrl.Wait()

	code, body := do(t, srv, http.MethodGet, "/api/backups/20251031/progress")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, float64(10), body["progress"])
	assert.Equal(t, "Script exited with non-zero status", body["error"])
}

func TestProgressNotFound(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, &stubContainers{})

	code, body := do(t, srv, http.MethodGet, "/api/backups/20240101/progress")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No restoration job found for this backup", body["error"])
}

func TestInvalidBackupID(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, &stubContainers{})

	for _, path := range []string{
		"/api/backups/2025103/load",
		"/api/backups/2025-10-31/load",
		"/api/backups/abcdefgh/progress",
		"/api/backups/-1234567/load",
		"/api/backups/+1234567/load",
		"/api/backups/1234.567/load",
		"/api/backups/+0251031/load",
		"/api/backups/20251399/load",
		"/api/backups/20250230/progress",
	} {
		method := http.MethodPost
		if filepath.Base(path) == "progress" {
			method = http.MethodGet
		}
		code, body := do(t, srv, method, path)
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.NotEmpty(t, body["error"], path)
	}
}

func TestListBackups(t *testing.T) {
	catalog := &stubCatalog{archives: []models.Archive{
		{BackupID: "20251031", Filename: "iznik-2025-10-31-04-00.xbstream", Size: 2048, SizeHuman: "2.0 KiB"},
		{BackupID: "20251030", Filename: "iznik-2025-10-30-04-00.xbstream", Size: 1024, SizeHuman: "1.0 KiB"},
	}}
	srv, _ := newTestServer(t, "exit 0\n", catalog, &stubContainers{loaded: []string{"20251030"}})

	code, body := do(t, srv, http.MethodGet, "/api/backups?refresh=true")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, catalog.forced)
	assert.Equal(t, float64(2), body["total"])

	backups := body["backups"].([]any)
	first := backups[0].(map[string]any)
	second := backups[1].(map[string]any)
	assert.Equal(t, "20251031", first["date"])
	assert.Equal(t, false, first["loaded"])
	assert.Equal(t, true, second["loaded"])
}

func TestListBackupsErrors(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{err: errors.New("failed to list backups: 403")}, &stubContainers{})

	code, body := do(t, srv, http.MethodGet, "/api/backups")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "403")
}

func TestListBackupsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, &stubContainers{loadedErr: errors.New("docker down")})

	code, body := do(t, srv, http.MethodGet, "/api/backups")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["backups"])
}

func TestUnload(t *testing.T) {
	docker := &stubContainers{}
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, docker)

	code, body := do(t, srv, http.MethodPost, "/api/backups/20251031/unload")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "stopped", body["status"])
	assert.Equal(t, []string{"20251031"}, docker.unloaded)

	docker.unloadErr = errors.New("permission denied")
	code, body = do(t, srv, http.MethodPost, "/api/backups/20251031/unload")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "permission denied")
}

func TestListLoaded(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, &stubContainers{loaded: []string{"20251031", "20251029"}})

	code, body := do(t, srv, http.MethodGet, "/api/backups/loaded")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"20251031", "20251029"}, body["loaded"])
	assert.Equal(t, float64(2), body["total"])
}

func TestListRestorations(t *testing.T) {
	srv, ctrl := newTestServer(t, successScript, &stubCatalog{}, &stubContainers{})

	do(t, srv, http.MethodPost, "/api/backups/20251031/load")
	ctrl.Wait()

	code, body := do(t, srv, http.MethodGet, "/api/restorations")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
}

func TestCurrentBackup(t *testing.T) {
	srv, _ := newTestServer(t, "exit 0\n", &stubCatalog{}, &stubContainers{})

	code, body := do(t, srv, http.MethodGet, "/api/current-backup")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["date"])
	assert.Equal(t, "No backup currently loaded", body["message"])

	require.NoError(t, os.WriteFile(srv.config.Restore.CurrentBackupFile, []byte(`{"date":"20251031"}`), 0644))
	code, body = do(t, srv, http.MethodGet, "/api/current-backup")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "20251031", body["date"])
}
