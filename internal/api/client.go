// Package api talks to the journal collection server: a health probe and the
// multipart upload of an exported session journal.
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/scenewalk/scenewalk/internal/storage"
	"github.com/scenewalk/scenewalk/pkg/core"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/api/v1/journals/add"
)

// ErrNothingExported is returned when a backend finished a session without writing a
// journal file.
var ErrNothingExported = errors.New("no exported journal")

// Client handles communication with the journal collection server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the collection server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + healthPath)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	return expectOK(resp, "healthcheck")
}

// Upload streams the journal at filePath to the server together with meta.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	name := filepath.Base(filePath)

	written := make(chan error, 1)
	go func() {
		err := writeForm(form, c.fields(name, meta), name, file)
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		written <- err
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		_ = pr.Close()
		<-written
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	// Unblocks the writer if the server answered before reading the whole form.
	_ = pr.Close()
	writeErr := <-written
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	if err := expectOK(resp, "upload"); err != nil {
		return err
	}
	return writeErr
}

// UploadJournal uploads the file u exported when its session ended.
func (c *Client) UploadJournal(u storage.Uploadable) error {
	path := u.ExportedFilePath()
	if path == "" {
		return ErrNothingExported
	}
	return c.Upload(path, u.ExportMetadata())
}

func (c *Client) fields(filename string, meta core.UploadMetadata) [][2]string {
	return [][2]string{
		{"secret", c.apiKey},
		{"filename", filename},
		{"sessionId", meta.SessionID},
		{"tour", meta.Tour},
		{"host", meta.Host},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 6, 64)},
		{"unlocked", strconv.Itoa(meta.Unlocked)},
	}
}

func writeForm(form *multipart.Writer, fields [][2]string, filename string, body io.Reader) error {
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}

// expectOK drains and closes resp, failing on anything but 200.
func expectOK(resp *http.Response, what string) error {
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", what, resp.StatusCode)
	}
	return nil
}
