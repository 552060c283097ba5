package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPClient is the net/http-backed HTTPClient used unless a caller
// supplies its own (e.g. for testing, or to route through a proxy).
type DefaultHTTPClient struct {
	Client *http.Client
}

// NewDefaultHTTPClient returns a DefaultHTTPClient with a sane request
// timeout. Individual requests can still be bounded more tightly via ctx.
func NewDefaultHTTPClient() *DefaultHTTPClient {
	return &DefaultHTTPClient{Client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *DefaultHTTPClient) Do(ctx context.Context, method, url string, headers http.Header, body []byte) (int, http.Header, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, err
	}

	return resp.StatusCode, resp.Header, respBody, nil
}
