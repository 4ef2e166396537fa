package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client represents an HTTP client for the Yesterday API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client. A bare host:port is assumed to be plain HTTP.
func New(server string) *Client {
	baseURL := strings.TrimRight(server, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
	Status     string
	Progress   *int
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s (status %d, job %s)", e.Message, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// IsConflict reports whether err is a 409 from the load endpoint
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsNotFound reports whether err is a 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Backup is one archive in the bucket
type Backup struct {
	Date      string `json:"date"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	Timestamp string `json:"timestamp"`
	Loaded    bool   `json:"loaded"`
}

// Job is the progress record of a restoration
type Job struct {
	BackupID    string     `json:"backup_id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	StartedAt   time.Time  `json:"started"`
	CompletedAt *time.Time `json:"completed"`
	Error       *string    `json:"error"`
}

// Finished reports whether the job reached completed or failed
func (j *Job) Finished() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// LoadResponse is returned when a restoration is accepted
type LoadResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ListBackups returns the archives in the bucket, newest first
func (c *Client) ListBackups(refresh bool) ([]Backup, error) {
	path := "/api/backups"
	if refresh {
		path += "?refresh=true"
	}

	var resp struct {
		Backups []Backup `json:"backups"`
	}
	if err := c.do(http.MethodGet, path, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Backups, nil
}

// LoadBackup starts restoring a backup
func (c *Client) LoadBackup(backupID string) (*LoadResponse, error) {
	var resp LoadResponse
	if err := c.do(http.MethodPost, backupPath(backupID, "load"), http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Progress returns the restoration job of a backup
func (c *Client) Progress(backupID string) (*Job, error) {
	var job Job
	if err := c.do(http.MethodGet, backupPath(backupID, "progress"), http.StatusOK, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// UnloadBackup stops the containers of a restored backup
func (c *Client) UnloadBackup(backupID string) error {
	return c.do(http.MethodPost, backupPath(backupID, "unload"), http.StatusOK, nil)
}

// LoadedBackups returns the identifiers of running backups
func (c *Client) LoadedBackups() ([]string, error) {
	var resp struct {
		Loaded []string `json:"loaded"`
	}
	if err := c.do(http.MethodGet, "/api/backups/loaded", http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Loaded, nil
}

// Restorations returns every job the server has seen since it started
func (c *Client) Restorations() ([]Job, error) {
	var resp struct {
		Restorations []Job `json:"restorations"`
	}
	if err := c.do(http.MethodGet, "/api/restorations", http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Restorations, nil
}

func backupPath(backupID, action string) string {
	return fmt.Sprintf("/api/backups/%s/%s", url.PathEscape(backupID), action)
}

func (c *Client) do(method, path string, expected int, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var payload struct {
		Error    string `json:"error"`
		Status   string `json:"status"`
		Progress *int   `json:"progress"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    payload.Error,
		Status:     payload.Status,
		Progress:   payload.Progress,
	}
}
