package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/faultline/faultline/internal/errors"
	"github.com/faultline/faultline/internal/logging"
	"github.com/faultline/faultline/internal/observability/metrics"
)

// Package-level logger specific to the search service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "search.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "search", serviceLevelVar)
	if err != nil {
		// Fallback: log error to standard log and disable service file logging
		log.Printf("FATAL: Failed to initialize search file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "search")
		closeLogger = func() error { return nil }
	}
}

// RemoteSource describes the previous-generation backend a remote reindex pulls from.
type RemoteSource struct {
	Host     string
	Username string
	Password string
}

// Config holds the search client configuration.
type Config struct {
	Host           string        // backend base URL
	Username       string        // optional basic auth username
	Password       string        // optional basic auth password
	Scope          string        // index name prefix
	Source         RemoteSource  // remote reindex source, required for migration
	Timeout        time.Duration // per-request timeout
	RequestsPerSec float64       // client-side request pacing, 0 to disable
	Debug          bool          // verbose request logging
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:    "http://localhost:9200",
		Scope:   "faultline",
		Timeout: 30 * time.Second,
	}
}

const partitionCacheTTL = 12 * time.Hour

// Client is an HTTP client for the search backend implementing Backend.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	partitions *cache.Cache // known-provisioned partitions, avoids repeated creates
	metrics    *metrics.SearchMetrics
}

// NewClient creates a new search backend client.
func NewClient(config Config) (*Client, error) {
	if config.Host == "" {
		return nil, errors.Newf("search backend host is required").
			Category(errors.CategoryConfiguration).
			Component("search").
			Build()
	}
	if _, err := url.ParseRequestURI(config.Host); err != nil {
		return nil, errors.Newf("invalid search backend host %q: %w", config.Host, err).
			Category(errors.CategoryConfiguration).
			Component("search").
			Build()
	}
	if config.Scope == "" {
		config.Scope = DefaultConfig().Scope
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	var limiter *rate.Limiter
	if config.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSec), 1)
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:    limiter,
		partitions: cache.New(partitionCacheTTL, partitionCacheTTL*2),
	}

	logger.Info("search client initialized",
		"host", config.Host,
		"scope", config.Scope,
		"timeout", config.Timeout,
		"requests_per_sec", config.RequestsPerSec,
		"remote_source_configured", config.Source.Host != "")

	return client, nil
}

// SetMetrics attaches Prometheus metrics to the client. Safe to leave unset.
func (c *Client) SetMetrics(m *metrics.SearchMetrics) {
	c.metrics = m
}

// Close releases client resources.
func (c *Client) Close() {
	logger.Info("closing search client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing search logger: %v", err)
		}
	}
}

// Reindex starts an asynchronous remote reindex and returns the remote task handle.
// The call returns as soon as the backend has accepted the task.
func (c *Client) Reindex(ctx context.Context, req *ReindexRequest) (string, error) {
	source := map[string]any{
		"index": req.SourceIndex,
		"query": c.reindexQuery(req),
	}
	if req.BatchSize > 0 {
		source["size"] = req.BatchSize
	}
	// Deterministic ordering makes retried partial migrations resumable
	sortField := IDField
	if req.DateField != "" {
		sortField = req.DateField
	}
	source["sort"] = []map[string]string{{sortField: "asc"}}

	if c.config.Source.Host != "" {
		remote := map[string]any{"host": c.config.Source.Host}
		if c.config.Source.Username != "" {
			remote["username"] = c.config.Source.Username
			remote["password"] = c.config.Source.Password
		}
		source["remote"] = remote
	}

	body := map[string]any{
		"conflicts": "proceed",
		"source":    source,
		"dest":      map[string]any{"index": req.TargetIndex},
	}

	var result struct {
		Task string `json:"task"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/_reindex?wait_for_completion=false", body, &result); err != nil {
		c.recordRequest("reindex", "error")
		return "", errors.New(err).
			Category(errors.CategoryReindexDispatch).
			Context("source_index", req.SourceIndex).
			Context("target_index", req.TargetIndex).
			Component("search").
			Build()
	}
	if result.Task == "" {
		c.recordRequest("reindex", "error")
		return "", errors.Newf("reindex accepted but no task handle returned").
			Category(errors.CategoryReindexDispatch).
			Context("source_index", req.SourceIndex).
			Context("target_index", req.TargetIndex).
			Component("search").
			Build()
	}

	c.recordRequest("reindex", "ok")
	logger.Debug("reindex task started",
		"source_index", req.SourceIndex,
		"type_filter", req.TypeFilter,
		"target_index", req.TargetIndex,
		"batch_size", req.BatchSize,
		"task", result.Task)
	return result.Task, nil
}

// reindexQuery builds the source filter: type term plus optional date cutoff.
func (c *Client) reindexQuery(req *ReindexRequest) map[string]any {
	filters := make([]map[string]any, 0, 2)
	if req.TypeFilter != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"type": req.TypeFilter},
		})
	}
	if req.DateField != "" {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				req.DateField: map[string]any{"gte": req.Cutoff.UTC().Format(time.RFC3339)},
			},
		})
	}
	if len(filters) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{"bool": map[string]any{"filter": filters}}
}

// taskResponse is the wire format of a task status lookup.
type taskResponse struct {
	Completed bool `json:"completed"`
	Task      *struct {
		RunningTimeNanos int64 `json:"running_time_in_nanos"`
		Status           *struct {
			Total            int64 `json:"total"`
			Created          int64 `json:"created"`
			Updated          int64 `json:"updated"`
			Deleted          int64 `json:"deleted"`
			VersionConflicts int64 `json:"version_conflicts"`
		} `json:"status"`
	} `json:"task"`
	Error map[string]any `json:"error"`
}

// TaskStatus fetches the current progress snapshot of a remote task without
// waiting for completion. A backend-reported task error yields Valid=false.
func (c *Client) TaskStatus(ctx context.Context, handle string) (*TaskStatus, error) {
	var result taskResponse
	if err := c.doRequest(ctx, http.MethodGet, "/_tasks/"+url.PathEscape(handle), nil, &result); err != nil {
		c.recordRequest("task_status", "error")
		return nil, errors.New(err).
			Category(errors.CategoryTaskStatus).
			Context("task", handle).
			Component("search").
			Build()
	}
	c.recordRequest("task_status", "ok")

	status := &TaskStatus{
		Completed: result.Completed,
		Valid:     result.Error == nil && result.Task != nil && result.Task.Status != nil,
	}
	if result.Task != nil {
		status.RunningTime = time.Duration(result.Task.RunningTimeNanos)
		if result.Task.Status != nil {
			status.Total = result.Task.Status.Total
			status.Created = result.Task.Status.Created
			status.Updated = result.Task.Status.Updated
			status.Deleted = result.Task.Status.Deleted
			status.VersionConflicts = result.Task.Status.VersionConflicts
		}
	}
	return status, nil
}

// Count returns the number of documents in an index.
func (c *Client) Count(ctx context.Context, index string) (int64, error) {
	var result struct {
		Count int64 `json:"count"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/"+url.PathEscape(index)+"/_count", nil, &result); err != nil {
		c.recordRequest("count", "error")
		return 0, errors.New(err).
			Category(errors.CategoryCountQuery).
			Context("index", index).
			Component("search").
			Build()
	}
	c.recordRequest("count", "ok")
	return result.Count, nil
}

// EnsureEventPartition provisions the new-generation dated event partition.
// Repeated calls for the same day are cheap: already-known partitions are
// cached and a backend already-exists response counts as success.
func (c *Client) EnsureEventPartition(ctx context.Context, day time.Time) error {
	index := NewEventIndex(c.config.Scope, day)
	if _, known := c.partitions.Get(index); known {
		return nil
	}

	err := c.doRequest(ctx, http.MethodPut, "/"+url.PathEscape(index), map[string]any{}, nil)
	if err != nil {
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			if errType, ok := ee.GetContext("error_type"); ok && errType == "resource_already_exists_exception" {
				c.partitions.Set(index, true, cache.DefaultExpiration)
				c.recordRequest("ensure_partition", "ok")
				return nil
			}
		}
		c.recordRequest("ensure_partition", "error")
		return errors.New(err).
			Category(errors.CategoryIndexProvision).
			Context("index", index).
			Component("search").
			Build()
	}

	c.partitions.Set(index, true, cache.DefaultExpiration)
	c.recordRequest("ensure_partition", "ok")
	logger.Debug("event partition created", "index", index)
	return nil
}

// MaintainAliases repoints the stable read aliases at the new index generation.
// Existing alias assignments to previous-generation indices are removed.
func (c *Client) MaintainAliases(ctx context.Context) error {
	scope := c.config.Scope
	body := map[string]any{
		"actions": []map[string]any{
			{"remove": map[string]any{"index": fmt.Sprintf("%s-events-*", scope), "alias": EventAlias(scope)}},
			{"add": map[string]any{"index": fmt.Sprintf("%s-v2-events-*", scope), "alias": EventAlias(scope)}},
			{"remove": map[string]any{"index": MainIndex(scope), "alias": scope}},
			{"add": map[string]any{"index": fmt.Sprintf("%s-v2-*", scope), "alias": scope}},
		},
	}

	if err := c.doRequest(ctx, http.MethodPost, "/_aliases", body, nil); err != nil {
		c.recordRequest("maintain_aliases", "error")
		return errors.New(err).
			Category(errors.CategoryAliasMaint).
			Context("scope", scope).
			Component("search").
			Build()
	}
	c.recordRequest("maintain_aliases", "ok")
	logger.Info("aliases repointed to new index generation", "scope", scope)
	return nil
}

// backendError is the wire format of a backend error response body.
type backendError struct {
	Error *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// doRequest executes one backend request and decodes the JSON response into result.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.New(err).
				Category(errors.CategoryTimeout).
				Context("method", method).
				Context("path", path).
				Component("search").
				Build()
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Newf("failed to encode request body: %w", err).
				Category(errors.CategoryValidation).
				Context("path", path).
				Component("search").
				Build()
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Host+path, reqBody)
	if err != nil {
		return errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Context("method", method).
			Context("path", path).
			Component("search").
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	if c.config.Debug {
		logger.Debug("search backend request", "method", method, "path", path)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("search backend request failed",
			"error", err,
			"method", method,
			"path", path)
		return errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("method", method).
			Context("path", path).
			Component("search").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.recordDuration(method+" "+path, time.Since(start))

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("path", path).
			Context("status_code", resp.StatusCode).
			Component("search").
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var be backendError
		_ = json.Unmarshal(bodyBytes, &be)
		eb := errors.Newf("search backend returned status %d", resp.StatusCode).
			Category(getErrorCategory(resp.StatusCode)).
			Context("method", method).
			Context("path", path).
			Context("status_code", resp.StatusCode).
			Component("search")
		if be.Error != nil {
			eb.Context("error_type", be.Error.Type)
			eb.Context("error_reason", be.Error.Reason)
		}
		return eb.Build()
	}

	if result != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return errors.Newf("failed to decode response body: %w", err).
				Category(errors.CategoryNetwork).
				Context("path", path).
				Component("search").
				Build()
		}
	}

	return nil
}

func (c *Client) recordRequest(operation, status string) {
	if c.metrics != nil {
		c.metrics.RecordRequest(operation, status)
	}
}

func (c *Client) recordDuration(operation string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordRequestDuration(operation, d.Seconds())
	}
}

// getErrorCategory determines the appropriate error category based on HTTP status code
func getErrorCategory(statusCode int) errors.ErrorCategory {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryConfiguration
	case http.StatusTooManyRequests:
		// Backend overload signal, callers back off briefly
		return errors.CategoryLimit
	case http.StatusNotFound:
		return errors.CategoryNotFound
	case http.StatusBadRequest:
		return errors.CategoryValidation
	default:
		return errors.CategoryNetwork
	}
}
