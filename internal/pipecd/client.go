package pipecd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/pipeview/internal/approval"
	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/stagelog"
)

// ErrNotFound is returned when the control plane answers 404.
var ErrNotFound = errors.New("not found")

// DeploymentFetcher is the read side used by the poller.
type DeploymentFetcher interface {
	FetchDeployment(ctx context.Context, deploymentID string) (pipeline.Deployment, error)
}

// Ensure Client implements the collaborator interfaces at compile time.
var (
	_ DeploymentFetcher  = (*Client)(nil)
	_ stagelog.Fetcher   = (*Client)(nil)
	_ approval.Commander = (*Client)(nil)
)

// Client talks to the control plane API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	token     string
}

const (
	defaultAddress   = "127.0.0.1:9090"
	defaultUserAgent = "pipeview/0.1"
	requestTimeout   = 5 * time.Second
	requestIDHeader  = "X-Request-ID"
	apiPrefix        = "/api/v1/deployments/"
)

// NewClient builds a Client for the host:port or URL in address. A non-empty
// token is sent as a bearer token.
func NewClient(address, token string) (*Client, error) {
	base, err := parseBaseURL(address)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
		token:     strings.TrimSpace(token),
	}, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchDeployment retrieves one deployment snapshot.
func (c *Client) FetchDeployment(ctx context.Context, deploymentID string) (pipeline.Deployment, error) {
	if c == nil {
		return pipeline.Deployment{}, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(deploymentID) == "" {
		return pipeline.Deployment{}, fmt.Errorf("deployment id required")
	}
	var payload pipeline.Deployment
	if err := c.doURL(ctx, http.MethodGet, apiURL(deploymentID), nil, &payload); err != nil {
		return pipeline.Deployment{}, err
	}
	return payload, nil
}

// FetchStageLog retrieves log blocks from q.OffsetIndex on.
func (c *Client) FetchStageLog(ctx context.Context, q stagelog.Query) (stagelog.Page, error) {
	if c == nil {
		return stagelog.Page{}, fmt.Errorf("client is nil")
	}
	if q.DeploymentID == "" || q.StageID == "" {
		return stagelog.Page{}, fmt.Errorf("deployment and stage id required")
	}
	values := url.Values{}
	values.Set("offset_index", strconv.FormatInt(q.OffsetIndex, 10))
	values.Set("retried_count", strconv.Itoa(q.RetriedCount))
	rel := apiURL(q.DeploymentID, "stages", q.StageID, "logs")
	rel.RawQuery = values.Encode()

	var payload stagelog.Page
	err := c.doURL(ctx, http.MethodGet, rel, nil, &payload)
	if errors.Is(err, ErrNotFound) {
		return stagelog.Page{}, fmt.Errorf("%w: %w", stagelog.ErrNoLog, err)
	}
	if err != nil {
		return stagelog.Page{}, err
	}
	return payload, nil
}

type commandResponse struct {
	CommandID string `json:"commandId"`
}

// ApproveStage asks the control plane to approve a waiting stage.
func (c *Client) ApproveStage(ctx context.Context, deploymentID, stageID string) (string, error) {
	return c.command(ctx, deploymentID, stageID, "approve")
}

// SkipStage asks the control plane to skip a running stage.
func (c *Client) SkipStage(ctx context.Context, deploymentID, stageID string) (string, error) {
	return c.command(ctx, deploymentID, stageID, "skip")
}

func (c *Client) command(ctx context.Context, deploymentID, stageID, verb string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	if deploymentID == "" || stageID == "" {
		return "", fmt.Errorf("deployment and stage id required")
	}
	var payload commandResponse
	if err := c.doURL(ctx, http.MethodPost, apiURL(deploymentID, "stages", stageID, verb), struct{}{}, &payload); err != nil {
		return "", err
	}
	return payload.CommandID, nil
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("api %s: %w", rel.Path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d%s", rel.Path, resp.StatusCode, errorDetail(resp.Body))
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(h http.Header) {
	h.Set("Accept", "application/json")
	h.Set("User-Agent", c.userAgent)
	h.Set(requestIDHeader, uuid.NewString())
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

// errorDetail pulls the "error" field out of a JSON error body when present.
func errorDetail(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(payload.Error); msg != "" {
		return ": " + msg
	}
	return ""
}

// apiURL builds a path under the deployments API. Each segment is escaped
// on its own so ids containing '/' or '?' stay a single path element.
func apiURL(segments ...string) *url.URL {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return &url.URL{
		Path:    apiPrefix + strings.Join(segments, "/"),
		RawPath: apiPrefix + strings.Join(escaped, "/"),
	}
}

func parseBaseURL(address string) (*url.URL, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		trimmed = defaultAddress
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_address %q: %w", address, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
