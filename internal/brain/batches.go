package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chitti-ai/chitti/internal/wire"
)

// BatchOperation is the long-running-operation model of §4.2/§6:
// create returns a handle, get returns {done, result|error}.
type BatchOperation struct {
	Name   string                    `json:"name"`
	Done   bool                      `json:"done"`
	Result *wire.InteractionResult   `json:"result,omitempty"`
	Error  *BatchError               `json:"error,omitempty"`
}

type BatchError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) batchesURL(model, suffix string) string {
	if model != "" {
		return fmt.Sprintf("%s/v1beta/models/%s:batchGenerateContent", c.baseURL(), model)
	}
	u := strings.TrimRight(c.baseURL(), "/") + "/v1beta/batches"
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

func (c *Client) CreateBatch(ctx context.Context, model string, requests []wire.InteractionRequest) (*BatchOperation, error) {
	payload := map[string]any{"requests": requests}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &DecodeFailedError{Err: err}
	}
	req, _, err := c.newRequest(ctx, http.MethodPost, c.batchesURL(model, ""), body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return c.doBatchRequest(req)
}

func (c *Client) GetBatch(ctx context.Context, name string) (*BatchOperation, error) {
	req, _, err := c.newRequest(ctx, http.MethodGet, c.batchesURL("", name), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return c.doBatchRequest(req)
}

// ListBatches completes the batches.create/get/list/cancel/delete set
// spec.md names, grounded on caches.go's ListCaches (same GET-and-unwrap
// shape against the sibling /v1beta/batches collection), with optional
// pageSize/pageToken since the batches list can be long-running and large.
func (c *Client) ListBatches(ctx context.Context, pageSize int, pageToken string) ([]BatchOperation, string, error) {
	u := strings.TrimRight(c.baseURL(), "/") + "/v1beta/batches"
	q := make([]string, 0, 2)
	if pageSize > 0 {
		q = append(q, fmt.Sprintf("pageSize=%d", pageSize))
	}
	if pageToken != "" {
		q = append(q, "pageToken="+pageToken)
	}
	if len(q) > 0 {
		u += "?" + strings.Join(q, "&")
	}

	req, _, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", &TransportError{Err: err}
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, "", &TransportError{Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", classifyHTTPError(resp, data)
	}
	var wrapped struct {
		Operations    []BatchOperation `json:"operations"`
		NextPageToken string           `json:"nextPageToken"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, "", &DecodeFailedError{Err: err}
	}
	return wrapped.Operations, wrapped.NextPageToken, nil
}

func (c *Client) CancelBatch(ctx context.Context, name string) error {
	req, _, err := c.newRequest(ctx, http.MethodPost, c.batchesURL("", name+":cancel"), nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	_, err = c.doBatchRequest(req)
	return err
}

func (c *Client) DeleteBatch(ctx context.Context, name string) error {
	req, _, err := c.newRequest(ctx, http.MethodDelete, c.batchesURL("", name), nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	_, err = c.doBatchRequest(req)
	return err
}

func (c *Client) doBatchRequest(req *http.Request) (*BatchOperation, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPError(resp, data)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var op BatchOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, &DecodeFailedError{Err: err}
	}
	return &op, nil
}
