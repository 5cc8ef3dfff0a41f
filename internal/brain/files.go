package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FileHandle is the result of a successful upload, per §4.2's sibling API.
type FileHandle struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	MimeType    string `json:"mime_type"`
	State       string `json:"state"` // "PROCESSING"|"ACTIVE"|"FAILED"
	DisplayName string `json:"display_name,omitempty"`
}

// UploadFile performs the three-step resumable upload handshake described in
// §6 and grounded on original_source/src/gemini/files.rs: a metadata POST
// that returns an upload URL via the x-goog-upload-url response header,
// followed by the byte upload with Command "upload, finalize".
func (c *Client) UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (*FileHandle, error) {
	meta := map[string]any{"file": map[string]any{"display_name": displayName}}
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return nil, &DecodeFailedError{Err: err}
	}

	startURL := strings.TrimRight(c.baseURL(), "/") + "/upload/v1beta/files"
	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(metaBody))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	startReq.Header.Set("Authorization", "Bearer "+c.Credential)
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	startReq.Header.Set("Content-Type", "application/json")

	startResp, err := c.httpClient().Do(startReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer startResp.Body.Close()
	if startResp.StatusCode < 200 || startResp.StatusCode >= 300 {
		body, _ := io.ReadAll(startResp.Body)
		return nil, classifyHTTPError(startResp, body)
	}
	uploadURL := startResp.Header.Get("x-goog-upload-url")
	if uploadURL == "" {
		return nil, &ProtocolMismatchError{Reason: "missing x-goog-upload-url header"}
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	uploadReq.Header.Set("Authorization", "Bearer "+c.Credential)
	uploadReq.Header.Set("Content-Length", strconv.Itoa(len(data)))
	uploadReq.Header.Set("X-Goog-Upload-Offset", "0")
	uploadReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	uploadResp, err := c.httpClient().Do(uploadReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer uploadResp.Body.Close()
	body, err := io.ReadAll(uploadResp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if uploadResp.StatusCode < 200 || uploadResp.StatusCode >= 300 {
		return nil, classifyHTTPError(uploadResp, body)
	}

	var wrapped struct {
		File FileHandle `json:"file"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, &DecodeFailedError{Err: err}
	}
	return &wrapped.File, nil
}

// GetFile polls a file resource's metadata by name.
func (c *Client) GetFile(ctx context.Context, name string) (*FileHandle, error) {
	name = strings.TrimPrefix(name, "files/")
	url := fmt.Sprintf("%s/v1beta/files/%s", c.baseURL(), name)
	req, _, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPError(resp, body)
	}
	var fh FileHandle
	if err := json.Unmarshal(body, &fh); err != nil {
		return nil, &DecodeFailedError{Err: err}
	}
	return &fh, nil
}

// AwaitActive polls GetFile until the file's state transitions to ACTIVE or
// FAILED, or the context is cancelled.
func (c *Client) AwaitActive(ctx context.Context, name string, pollInterval time.Duration) (*FileHandle, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	for {
		fh, err := c.GetFile(ctx, name)
		if err != nil {
			return nil, err
		}
		if fh.State == "ACTIVE" {
			return fh, nil
		}
		if fh.State == "FAILED" {
			return nil, &ProtocolMismatchError{Reason: "file processing failed: " + name}
		}
		select {
		case <-ctx.Done():
			return nil, &CancelledError{}
		case <-time.After(pollInterval):
		}
	}
}
