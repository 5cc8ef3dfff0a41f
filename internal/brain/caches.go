package brain

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// CachedContent mirrors the cachedContents resource of §6: a server-held
// prefix of input tokens referenced by name to reduce cost.
type CachedContent struct {
	Name       string `json:"name,omitempty"`
	Model      string `json:"model"`
	TTL        string `json:"ttl,omitempty"`         // decimal-seconds string, e.g. "300s"
	ExpireTime string `json:"expire_time,omitempty"` // RFC 3339
}

func (c *Client) cachesURL(suffix string) string {
	u := strings.TrimRight(c.baseURL(), "/") + "/v1beta/cachedContents"
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

func (c *Client) doCacheRequest(ctx context.Context, method, url string, payload any) (*CachedContent, error) {
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, &DecodeFailedError{Err: err}
		}
	}
	req, _, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
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
	var cc CachedContent
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, &DecodeFailedError{Err: err}
	}
	return &cc, nil
}

func (c *Client) CreateCache(ctx context.Context, cc CachedContent) (*CachedContent, error) {
	return c.doCacheRequest(ctx, http.MethodPost, c.cachesURL(""), cc)
}

func (c *Client) GetCache(ctx context.Context, name string) (*CachedContent, error) {
	return c.doCacheRequest(ctx, http.MethodGet, c.cachesURL(name), nil)
}

// UpdateCache mutates only ttl/expire_time, per §6 ("only ttl/expire_time mutable").
func (c *Client) UpdateCache(ctx context.Context, name string, ttl, expireTime string) (*CachedContent, error) {
	patch := CachedContent{TTL: ttl, ExpireTime: expireTime}
	return c.doCacheRequest(ctx, http.MethodPatch, c.cachesURL(name), patch)
}

func (c *Client) DeleteCache(ctx context.Context, name string) error {
	_, err := c.doCacheRequest(ctx, http.MethodDelete, c.cachesURL(name), nil)
	return err
}

func (c *Client) ListCaches(ctx context.Context) ([]CachedContent, error) {
	req, _, err := c.newRequest(ctx, http.MethodGet, c.cachesURL(""), nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
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
	var wrapped struct {
		CachedContents []CachedContent `json:"cachedContents"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, &DecodeFailedError{Err: err}
	}
	return wrapped.CachedContents, nil
}

