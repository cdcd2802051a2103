package synology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vertextoedge/git-annex-remote-synology/internal/port"
)

// listPageSize bounds a single list request; larger folders are paged
const listPageSize = 1000

// jsonList encodes values as the JSON array string FileStation expects for multi-path params
func jsonList(values ...string) string {
	b, _ := json.Marshal(values)
	return string(b)
}

// ListDirectory lists the immediate children of folder, following vendor order
func (c *Client) ListDirectory(ctx context.Context, folder string) ([]port.FileEntry, error) {
	apiPath, version, err := c.getAPIPath(ctx, APIFileStationList)
	if err != nil {
		return nil, err
	}

	var entries []port.FileEntry
	offset := 0
	for {
		params := url.Values{
			"api":         {APIFileStationList},
			"version":     {strconv.Itoa(version)},
			"method":      {"list"},
			"folder_path": {folder},
			"offset":      {strconv.Itoa(offset)},
			"limit":       {strconv.Itoa(listPageSize)},
		}

		resp, err := c.doAPIRequest(ctx, apiPath, params)
		if err != nil {
			return nil, err
		}

		var data listFilesData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to parse list response: %w", err)
		}

		for _, f := range data.Files {
			entries = append(entries, port.FileEntry{Path: f.Path, Name: f.Name, IsDir: f.IsDir})
		}

		offset += len(data.Files)
		if len(data.Files) == 0 || offset >= data.Total {
			break
		}
	}

	return entries, nil
}

// ListShares lists all shared folders visible to the session
func (c *Client) ListShares(ctx context.Context) ([]port.FileEntry, error) {
	apiPath, version, err := c.getAPIPath(ctx, APIFileStationList)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"api":     {APIFileStationList},
		"version": {strconv.Itoa(version)},
		"method":  {"list_share"},
	}

	resp, err := c.doAPIRequest(ctx, apiPath, params)
	if err != nil {
		return nil, err
	}

	var data listSharesData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse list_share response: %w", err)
	}

	shares := make([]port.FileEntry, 0, len(data.Shares))
	for _, s := range data.Shares {
		shares = append(shares, port.FileEntry{Path: s.Path, Name: s.Name, IsDir: true})
	}
	return shares, nil
}

// CreateDirectory creates name under parent
func (c *Client) CreateDirectory(ctx context.Context, parent, name string) error {
	apiPath, version, err := c.getAPIPath(ctx, APIFileStationCreateFolder)
	if err != nil {
		return err
	}

	params := url.Values{
		"api":         {APIFileStationCreateFolder},
		"version":     {strconv.Itoa(version)},
		"method":      {"create"},
		"folder_path": {jsonList(parent)},
		"name":        {jsonList(name)},
	}

	_, err = c.doAPIRequest(ctx, apiPath, params)
	return err
}

// DeleteFiles starts a delete task; it does not wait for completion
func (c *Client) DeleteFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("at least one path is required")
	}

	apiPath, version, err := c.getAPIPath(ctx, APIFileStationDelete)
	if err != nil {
		return err
	}

	params := url.Values{
		"api":       {APIFileStationDelete},
		"version":   {strconv.Itoa(version)},
		"method":    {"start"},
		"path":      {jsonList(paths...)},
		"recursive": {"true"},
	}

	resp, err := c.doAPIRequest(ctx, apiPath, params)
	if err != nil {
		return err
	}

	var data deleteStartData
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return fmt.Errorf("failed to parse delete response: %w", err)
		}
	}

	c.logger.Debug("delete task started",
		zap.Strings("paths", paths),
		zap.String("task_id", data.TaskID))
	return nil
}

// Rename renames p in place
func (c *Client) Rename(ctx context.Context, p, newName string) error {
	apiPath, version, err := c.getAPIPath(ctx, APIFileStationRename)
	if err != nil {
		return err
	}

	params := url.Values{
		"api":     {APIFileStationRename},
		"version": {strconv.Itoa(version)},
		"method":  {"rename"},
		"path":    {jsonList(p)},
		"name":    {jsonList(newName)},
	}

	_, err = c.doAPIRequest(ctx, apiPath, params)
	return err
}

// UploadFile uploads localFile into folder. The multipart body is streamed from disk
// with a precomputed length so the NAS never sees a chunked upload.
func (c *Client) UploadFile(ctx context.Context, folder, localFile, name string, progress port.ProgressFunc) error {
	apiPath, version, err := c.getAPIPath(ctx, APIFileStationUpload)
	if err != nil {
		return err
	}

	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localFile, err)
	}

	if name == "" {
		name = filepath.Base(localFile)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"path", folder},
		{"create_parents", "true"},
		{"overwrite", "true"},
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if _, err := mw.CreateFormFile("file", name); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	head := append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	tail := append([]byte(nil), buf.Bytes()...)

	body := io.MultiReader(
		bytes.NewReader(head),
		&progressReader{reader: f, report: progress},
		bytes.NewReader(tail),
	)

	params := url.Values{
		"api":     {APIFileStationUpload},
		"version": {strconv.Itoa(version)},
		"method":  {"upload"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(apiPath, params), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = int64(len(head)) + info.Size() + int64(len(tail))

	c.logger.Debug("uploading file",
		zap.String("local", localFile),
		zap.String("folder", folder),
		zap.String("name", name),
		zap.Int64("size", info.Size()))

	resp, err := c.doTransferRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, err = decodeResponse(resp)
	return err
}

// DownloadFile downloads remotePath into localDir, named after the remote base name.
// A partially written file is removed on failure.
func (c *Client) DownloadFile(ctx context.Context, remotePath, localDir string, progress port.ProgressFunc) (string, error) {
	apiPath, version, err := c.getAPIPath(ctx, APIFileStationDownload)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"api":     {APIFileStationDownload},
		"version": {strconv.Itoa(version)},
		"method":  {"download"},
		"path":    {remotePath},
		"mode":    {"download"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(apiPath, params), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doTransferRequest(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Errors come back as JSON instead of file content
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if _, err := decodeResponse(resp); err != nil {
			return "", err
		}
		return "", fmt.Errorf("unexpected json response for download of %s", remotePath)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	localPath := filepath.Join(localDir, path.Base(remotePath))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	buffer := make([]byte, c.bufferSize)
	written, err := io.CopyBuffer(out, &progressReader{reader: resp.Body, report: progress}, buffer)
	if err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("failed to close %s: %w", localPath, err)
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		os.Remove(localPath)
		return "", fmt.Errorf("short download of %s: got %d of %d bytes", remotePath, written, resp.ContentLength)
	}

	return localPath, nil
}

// progressReader wraps a reader to report cumulative bytes read
type progressReader struct {
	reader    io.Reader
	report    port.ProgressFunc
	bytesRead int64
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead += int64(n)
	if n > 0 && r.report != nil {
		r.report(r.bytesRead)
	}
	return n, err
}
