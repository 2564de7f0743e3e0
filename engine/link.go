// engine/link.go
// Package: engine
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Link talks to an engine bridge over HTTP. The bridge wraps a headless
// modelling workspace and exposes it as JSON endpoints.
type Link struct {
	name    string
	baseURL string
	client  *http.Client
}

type loadModelRequest struct {
	Path string `json:"path"`
	GUI  bool   `json:"gui"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type reportRequest struct {
	Reporter string `json:"reporter"`
}

type reportResponse struct {
	Value float64 `json:"value"`
}

type repeatReportRequest struct {
	Reporters []string `json:"reporters"`
	Reps      int      `json:"reps"`
	Go        string   `json:"go"`
}

type repeatReportResponse struct {
	Results map[string][]float64 `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewLink returns a link to the bridge at baseURL.
func NewLink(name, baseURL string, timeout time.Duration) *Link {
	return &Link{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

// Name returns the configured host name.
func (l *Link) Name() string { return l.name }

// LoadModel opens the model file in the bridge's workspace.
func (l *Link) LoadModel(ctx context.Context, path string, gui bool) error {
	return l.post(ctx, "/load_model", loadModelRequest{Path: path, GUI: gui}, nil)
}

// Command runs a single command.
func (l *Link) Command(ctx context.Context, cmd string) error {
	return l.post(ctx, "/command", commandRequest{Command: cmd}, nil)
}

// Report evaluates a reporter once.
func (l *Link) Report(ctx context.Context, reporter string) (float64, error) {
	var resp reportResponse
	if err := l.post(ctx, "/report", reportRequest{Reporter: reporter}, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// RepeatReport runs goCmd reps times, collecting every reporter each tick.
func (l *Link) RepeatReport(ctx context.Context, reporters []string, reps int, goCmd string) (map[string][]float64, error) {
	var resp repeatReportResponse
	req := repeatReportRequest{Reporters: reporters, Reps: reps, Go: goCmd}
	if err := l.post(ctx, "/repeat_report", req, &resp); err != nil {
		return nil, err
	}
	if _, err := CheckReport(reporters, resp.Results); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Close kills the workspace.
func (l *Link) Close(ctx context.Context) error {
	err := l.post(ctx, "/kill_workspace", struct{}{}, nil)
	l.client.CloseIdleConnections()
	return err
}

// post sends a JSON request and decodes the JSON reply into out when out is
// non-nil. Non-200 replies carry {"error": "..."}.
func (l *Link) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var e errorResponse
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("engine %s: %s", path, e.Error)
		}
		return fmt.Errorf("engine %s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// newHTTPClient returns a keep-alive client; a repeat report can hold a
// request open for the whole run, so timeout should be generous.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
