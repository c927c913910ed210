package courseadvisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// archiveField is the multipart field the server reads the zip from.
const archiveField = "archive"

// Client is the course advisor API entry point. It is safe for concurrent
// use; Login and Logout swap the token used by every later call.
type Client struct {
	base *url.URL
	http *http.Client
	obs  *observer

	mu    sync.RWMutex
	token string
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{httpClient: http.DefaultClient}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("courseadvisor: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("courseadvisor: base url %q must be http or https", baseURL)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return &Client{base: u, http: cfg.httpClient, obs: obs, token: cfg.token}, nil
}

// Token returns the current session token, empty before Login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// Login opens a session and keeps its token for later calls.
func (c *Client) Login(ctx context.Context, role Role, username, password string) (sess Session, err error) {
	start := time.Now()
	defer func() { c.obs.observe("login", start, err) }()

	body := map[string]string{"role": string(role), "username": username, "password": password}
	if _, err = c.doJSON(ctx, http.MethodPost, "/login", body, &sess); err != nil {
		return Session{}, err
	}
	c.setToken(sess.Token)
	return sess, nil
}

// Logout ends the session. The local token is cleared even if the call fails.
func (c *Client) Logout(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("logout", start, err) }()

	defer c.setToken("")
	_, err = c.doJSON(ctx, http.MethodPost, "/logout", nil, nil)
	return err
}

// Ask sends one question to the advisor. A rejected question is not an
// error: the returned Answer has Rejected set and carries the warning text.
func (c *Client) Ask(ctx context.Context, query string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	resp, err := c.doJSON(ctx, http.MethodPost, "/ask", map[string]string{"query": query}, &ans)
	if err != nil {
		return Answer{}, err
	}
	ans.Usage = usageFrom(resp.Header)
	return ans, nil
}

// Ingest uploads a zip archive and rebuilds the course index. Admin only.
func (c *Client) Ingest(ctx context.Context, filename string, archive io.Reader) (sum IngestSummary, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(archiveField, filename)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("courseadvisor: build upload: %w", err)
	}
	if _, err = io.Copy(part, archive); err != nil {
		return IngestSummary{}, fmt.Errorf("courseadvisor: read archive: %w", err)
	}
	if err = mw.Close(); err != nil {
		return IngestSummary{}, fmt.Errorf("courseadvisor: build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/ingest", &buf)
	if err != nil {
		return IngestSummary{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req, &sum)
	if err != nil {
		return IngestSummary{}, err
	}
	sum.Usage = usageFrom(resp.Header)
	return sum, nil
}

// Index describes the active index snapshot.
func (c *Client) Index(ctx context.Context) (info IndexInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	_, err = c.doJSON(ctx, http.MethodGet, "/index", nil, &info)
	return info, err
}

// Usage returns the embedding budget report. Admin only.
func (c *Client) Usage(ctx context.Context) (report UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	_, err = c.doJSON(ctx, http.MethodGet, "/usage", nil, &report)
	return report, err
}

// Health checks the server. A degraded server is reported in the status,
// not as an error.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("courseadvisor: health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeError(resp)
	}
	if err = json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, fmt.Errorf("courseadvisor: decode health: %w", err)
	}
	return hs, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("courseadvisor: build request: %w", err)
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("courseadvisor: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// do sends req and decodes a 2xx body into out (skipped when out is nil).
func (c *Client) do(req *http.Request, out any) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("courseadvisor: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, fmt.Errorf("courseadvisor: decode %s: %w", req.URL.Path, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Code = body.Code
	apiErr.Message = body.Message
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func usageFrom(h http.Header) Usage {
	emb, _ := strconv.Atoi(h.Get("X-Embedding-Tokens"))
	prompt, _ := strconv.Atoi(h.Get("X-Prompt-Tokens"))
	comp, _ := strconv.Atoi(h.Get("X-Completion-Tokens"))
	return Usage{EmbeddingTokens: emb, PromptTokens: prompt, CompletionTokens: comp}
}
