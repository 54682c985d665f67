package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"onnxd/pkg/types"
)

// DefaultServerURL is where onnxctl looks for a daemon unless told otherwise.
const DefaultServerURL = "http://127.0.0.1:8080"

// Client talks to a running onnxd instance.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL, falling back to DefaultServerURL
// when baseURL is empty.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var errResp types.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Models lists the registered models.
func (c *Client) Models(ctx context.Context) (types.ModelsResponse, error) {
	var out types.ModelsResponse
	err := c.do(ctx, http.MethodGet, "/models", nil, &out)
	return out, err
}

// ModelDetail fetches the detail view of one model.
func (c *Client) ModelDetail(ctx context.Context, id string) (types.ModelDetail, error) {
	var out types.ModelDetail
	err := c.do(ctx, http.MethodGet, "/models/"+id, nil, &out)
	return out, err
}

// Status fetches the daemon status snapshot.
func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// Evaluate runs one evaluation request.
func (c *Client) Evaluate(ctx context.Context, req types.EvalRequest) (types.EvalResponse, error) {
	var out types.EvalResponse
	err := c.do(ctx, http.MethodPost, "/eval", req, &out)
	return out, err
}

// Fetch asks the daemon to download and load a model from the artifact store.
func (c *Client) Fetch(ctx context.Context, id string, req types.FetchRequest) (types.FetchResponse, error) {
	var out types.FetchResponse
	err := c.do(ctx, http.MethodPost, "/models/"+id+"/fetch", req, &out)
	return out, err
}

// Reload asks the daemon to reopen a model's session from disk.
func (c *Client) Reload(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/models/"+id+"/reload", nil, nil)
}

// Unload drains and removes a model instance.
func (c *Client) Unload(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/models/"+id+"/unload", nil, nil)
}
