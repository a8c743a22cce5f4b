package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
)

// requestTimeout bounds every API call.
const requestTimeout = 10 * time.Second

// Client calls a slipway status API.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the status API at addr. A bare host:port is
// reached over plain HTTP.
func New(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{},
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// GetRun retrieves one run by id. A missing run reports
// storage.ErrNotFound.
func (c *Client) GetRun(id string) (*types.PipelineRun, error) {
	var run types.PipelineRun
	if err := c.getJSON("/v1/runs/"+url.PathEscape(id), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns retrieves every recorded run, newest first.
func (c *Client) ListRuns() ([]*types.PipelineRun, error) {
	var runs []*types.PipelineRun
	if err := c.getJSON("/v1/runs", &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListRunsByCluster retrieves the runs recorded for one cluster.
func (c *Client) ListRunsByCluster(cluster string) ([]*types.PipelineRun, error) {
	var runs []*types.PipelineRun
	if err := c.getJSON("/v1/runs?cluster="+url.QueryEscape(cluster), &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListWorkloads retrieves the stored workload descriptors.
func (c *Client) ListWorkloads() ([]*types.WorkloadDescriptor, error) {
	var workloads []*types.WorkloadDescriptor
	if err := c.getJSON("/v1/workloads", &workloads); err != nil {
		return nil, err
	}
	return workloads, nil
}

// GetWorkload retrieves one stored workload descriptor by namespace and
// name. A missing workload reports storage.ErrNotFound.
func (c *Client) GetWorkload(namespace, name string) (*types.WorkloadDescriptor, error) {
	var wd types.WorkloadDescriptor
	path := "/v1/workloads/" + url.PathEscape(namespace) + "/" + url.PathEscape(name)
	if err := c.getJSON(path, &wd); err != nil {
		return nil, err
	}
	return &wd, nil
}

// ListTopologies retrieves the stored cluster topologies.
func (c *Client) ListTopologies() ([]*types.ClusterTopology, error) {
	var topologies []*types.ClusterTopology
	if err := c.getJSON("/v1/topologies", &topologies); err != nil {
		return nil, err
	}
	return topologies, nil
}

// GetTopology retrieves one stored cluster topology by name. A missing
// topology reports storage.ErrNotFound.
func (c *Client) GetTopology(name string) (*types.ClusterTopology, error) {
	var ct types.ClusterTopology
	if err := c.getJSON("/v1/topologies/"+url.PathEscape(name), &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

// Health retrieves the process health document. An unhealthy process
// still answers with a full document, so 503 is not an error here.
func (c *Client) Health() (metrics.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return metrics.HealthStatus{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return metrics.HealthStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return metrics.HealthStatus{}, fmt.Errorf("GET /healthz: %s", apiError(resp))
	}

	var health metrics.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return metrics.HealthStatus{}, err
	}
	return health, nil
}

func (c *Client) getJSON(path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, storage.ErrNotFound)
	default:
		return fmt.Errorf("GET %s: %s", path, apiError(resp))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError extracts the server's error message, falling back to the
// HTTP status line.
func apiError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return resp.Status
}
