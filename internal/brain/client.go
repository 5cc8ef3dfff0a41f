package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chitti-ai/chitti/internal/wire"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client is the Brain Client of §4.2: a single-operation, stateless-across-calls
// HTTP/SSE client against the brain's "interactions" surface. It never
// retries — the Conductor owns retry policy — and never reads the process
// environment directly; credential/base URL/timeout are fixed at
// construction, generalizing the teacher's Client struct
// (sdk/llm/anthropic/client.go) with its internal retry loop removed.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Credential string
	Timeout    time.Duration

	Log *zap.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.timeout()}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 60 * time.Second
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func (c *Client) logger() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}

func modelPath(base, model, suffix string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:%s", base, model, suffix)
}

// newRequest builds the outbound HTTP request, setting the bearer credential
// and a per-request correlation id, grounded on original_source's
// gemini/client.rs X-Request-ID convention.
func (c *Client) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Credential)
	req.Header.Set("X-Request-ID", reqID)
	return req, reqID, nil
}

// Send issues a streaming Interaction Request and returns a Stream that the
// caller reads until closed. The request's Stream flag is forced true.
func (c *Client) Send(ctx context.Context, req *wire.InteractionRequest) (*Stream, error) {
	reqCopy := *req
	reqCopy.Stream = true
	if err := reqCopy.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(reqCopy)
	if err != nil {
		return nil, &DecodeFailedError{Err: err}
	}

	url := modelPath(c.baseURL(), modelOrAgent(&reqCopy), "streamGenerateContent")
	httpReq, reqID, err := c.newRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	client := streamHTTPClient(c.httpClient())
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &CancelledError{}
		}
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(resp, data)
	}

	c.logger().Debug("brain: streaming request sent", zap.String("request_id", reqID), zap.String("goog_request_id", resp.Header.Get("x-goog-request-id")))

	s := newStream(64)
	go c.consumeStream(ctx, resp.Body, s)
	return s, nil
}

func (c *Client) consumeStream(ctx context.Context, body io.ReadCloser, s *Stream) {
	defer body.Close()
	defer close(s.events)

	acc := newAssembler()
	emit := func(ev wire.Event) { s.events <- ev }

	err := consumeSSE(body, func(f frame) error {
		select {
		case <-ctx.Done():
			return &CancelledError{}
		default:
		}
		ev, derr := wire.DecodeEvent(f.event, []byte(f.data))
		if derr != nil {
			return &DecodeFailedError{Err: derr}
		}
		switch e := ev.(type) {
		case wire.ContentDeltaEvent:
			acc.applyContentDelta(e)
		case wire.ToolCallFragmentEvent:
			acc.applyToolFragment(e)
		case wire.CompleteEvent:
			if verr := acc.verify(e); verr != nil {
				return verr
			}
		case wire.ErrorEvent:
			emit(ev)
			return e.Err
		}
		emit(ev)
		return nil
	})

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			s.setErr(&CancelledError{})
			return
		}
		var perr *ProtocolMismatchError
		if errors.As(err, &perr) {
			s.setErr(perr)
			return
		}
		var derr *DecodeFailedError
		if errors.As(err, &derr) {
			s.setErr(derr)
			return
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			s.setErr(&TransportError{Err: err})
			return
		}
		s.setErr(&TransportError{Err: err})
	}
}

// Invoke issues a non-streaming Interaction Request and folds the result
// directly, without opening an SSE connection.
func (c *Client) Invoke(ctx context.Context, req *wire.InteractionRequest) (*wire.InteractionResult, error) {
	reqCopy := *req
	reqCopy.Stream = false
	if err := reqCopy.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(reqCopy)
	if err != nil {
		return nil, &DecodeFailedError{Err: err}
	}

	url := modelPath(c.baseURL(), modelOrAgent(&reqCopy), "generateContent")
	httpReq, reqID, err := c.newRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &CancelledError{}
		}
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

	c.logger().Debug("brain: invoke request sent", zap.String("request_id", reqID))

	var result wire.InteractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &DecodeFailedError{Err: err}
	}
	return &result, nil
}

func modelOrAgent(r *wire.InteractionRequest) string {
	if r.Model != "" {
		return r.Model
	}
	return r.Agent
}

func classifyHTTPError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")), Body: msg}
	}
	return &HTTPStatusError{Code: resp.StatusCode, Body: msg}
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
		return d
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func streamHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		return &http.Client{Timeout: 0}
	}
	if base.Timeout == 0 {
		return base
	}
	cpy := *base
	cpy.Timeout = 0
	return &cpy
}
