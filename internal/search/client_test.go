package search

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultline/faultline/internal/errors"
)

const testHost = "http://search.test"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Host:  testHost,
		Scope: "faultline",
		Source: RemoteSource{
			Host:     "http://old-cluster.test",
			Username: "migrator",
			Password: "secret",
		},
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestNewClientValidation(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		_, err := NewClient(Config{})
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
	})

	t.Run("invalid host", func(t *testing.T) {
		_, err := NewClient(Config{Host: "not a url"})
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
	})

	t.Run("defaults applied", func(t *testing.T) {
		client, err := NewClient(Config{Host: testHost})
		require.NoError(t, err)
		assert.Equal(t, "faultline", client.config.Scope)
		assert.Equal(t, 30*time.Second, client.config.Timeout)
	})
}

func TestClientReindex(t *testing.T) {
	client := newTestClient(t)

	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, testHost+"/_reindex?wait_for_completion=false",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"task": "node-1:42"})
		})

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	handle, err := client.Reindex(context.Background(), &ReindexRequest{
		SourceIndex: "faultline-events-2026.08.26",
		TypeFilter:  "event",
		DateField:   "date",
		Cutoff:      cutoff,
		BatchSize:   500,
		TargetIndex: "faultline-v2-events-2026.08.26",
	})
	require.NoError(t, err)
	assert.Equal(t, "node-1:42", handle)

	// Wire format: never abort on single-document conflicts
	assert.Equal(t, "proceed", captured["conflicts"])

	source, ok := captured["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "faultline-events-2026.08.26", source["index"])
	assert.InDelta(t, 500, source["size"], 0.1)

	// Remote source connection travels in the request body
	remote, ok := source["remote"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "http://old-cluster.test", remote["host"])
	assert.Equal(t, "migrator", remote["username"])

	// Date-filtered items are sorted by their date field for resumable retries
	sortSpec, ok := source["sort"].([]any)
	require.True(t, ok)
	require.Len(t, sortSpec, 1)
	assert.Equal(t, map[string]any{"date": "asc"}, sortSpec[0])

	dest, ok := captured["dest"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "faultline-v2-events-2026.08.26", dest["index"])
}

func TestClientReindexSortFallsBackToID(t *testing.T) {
	client := newTestClient(t)

	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, testHost+"/_reindex?wait_for_completion=false",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"task": "node-1:7"})
		})

	_, err := client.Reindex(context.Background(), &ReindexRequest{
		SourceIndex: "faultline-main",
		TypeFilter:  "organization",
		BatchSize:   1000,
		TargetIndex: "faultline-v2-organization",
	})
	require.NoError(t, err)

	source := captured["source"].(map[string]any)
	sortSpec := source["sort"].([]any)
	assert.Equal(t, map[string]any{"id": "asc"}, sortSpec[0])
}

func TestClientReindexMissingTaskHandle(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testHost+"/_reindex?wait_for_completion=false",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{}))

	_, err := client.Reindex(context.Background(), &ReindexRequest{
		SourceIndex: "a", TargetIndex: "b", BatchSize: 1000,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryReindexDispatch))
}

func TestClientTaskStatus(t *testing.T) {
	client := newTestClient(t)

	t.Run("running task", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodGet, testHost+"/_tasks/node-1:42",
			httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
				"completed": false,
				"task": map[string]any{
					"running_time_in_nanos": 1500000000,
					"status": map[string]any{
						"total":             1000,
						"created":           400,
						"updated":           50,
						"deleted":           0,
						"version_conflicts": 5,
					},
				},
			}))

		status, err := client.TaskStatus(context.Background(), "node-1:42")
		require.NoError(t, err)
		assert.False(t, status.Completed)
		assert.True(t, status.Valid)
		assert.Equal(t, int64(455), status.Processed())
		assert.InDelta(t, 0.455, status.Progress(), 0.0001)
		assert.Equal(t, 1500*time.Millisecond, status.RunningTime)
	})

	t.Run("errored task is invalid", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodGet, testHost+"/_tasks/node-1:43",
			httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
				"completed": true,
				"error":     map[string]any{"type": "script_exception", "reason": "boom"},
			}))

		status, err := client.TaskStatus(context.Background(), "node-1:43")
		require.NoError(t, err)
		assert.True(t, status.Completed)
		assert.False(t, status.Valid)
	})

	t.Run("missing status object is invalid", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodGet, testHost+"/_tasks/node-1:44",
			httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
				"completed": false,
			}))

		status, err := client.TaskStatus(context.Background(), "node-1:44")
		require.NoError(t, err)
		assert.False(t, status.Valid)
	})

	t.Run("rate limited", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodGet, testHost+"/_tasks/node-1:45",
			httpmock.NewStringResponder(http.StatusTooManyRequests, `{"error":{"type":"circuit_breaking_exception","reason":"too many requests"}}`))

		_, err := client.TaskStatus(context.Background(), "node-1:45")
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryLimit))
		assert.True(t, errors.HasCategory(err, errors.CategoryTaskStatus))
	})
}

func TestClientCount(t *testing.T) {
	client := newTestClient(t)

	t.Run("success", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodGet, testHost+"/faultline-v2-organization/_count",
			httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"count": 12345}))

		count, err := client.Count(context.Background(), "faultline-v2-organization")
		require.NoError(t, err)
		assert.Equal(t, int64(12345), count)
	})

	t.Run("missing index", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodGet, testHost+"/nope/_count",
			httpmock.NewStringResponder(http.StatusNotFound, `{"error":{"type":"index_not_found_exception","reason":"no such index"}}`))

		_, err := client.Count(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
	})
}

func TestClientEnsureEventPartition(t *testing.T) {
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	t.Run("creates partition and caches it", func(t *testing.T) {
		client := newTestClient(t)
		httpmock.RegisterResponder(http.MethodPut, testHost+"/faultline-v2-events-2026.08.26",
			httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"acknowledged": true}))

		require.NoError(t, client.EnsureEventPartition(context.Background(), day))
		require.NoError(t, client.EnsureEventPartition(context.Background(), day))
		assert.Equal(t, 1, httpmock.GetTotalCallCount(), "second call must be served from cache")
	})

	t.Run("already existing partition is success", func(t *testing.T) {
		client := newTestClient(t)
		httpmock.RegisterResponder(http.MethodPut, testHost+"/faultline-v2-events-2026.08.26",
			httpmock.NewStringResponder(http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception","reason":"index already exists"}}`))

		require.NoError(t, client.EnsureEventPartition(context.Background(), day))
	})

	t.Run("other failures propagate", func(t *testing.T) {
		client := newTestClient(t)
		httpmock.RegisterResponder(http.MethodPut, testHost+"/faultline-v2-events-2026.08.26",
			httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"error":{"type":"unavailable_shards_exception","reason":"no shards"}}`))

		err := client.EnsureEventPartition(context.Background(), day)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryIndexProvision))
	})
}

func TestClientMaintainAliases(t *testing.T) {
	client := newTestClient(t)

	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, testHost+"/_aliases",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"acknowledged": true})
		})

	require.NoError(t, client.MaintainAliases(context.Background()))

	actions, ok := captured["actions"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, actions)

	// The event read alias must end up on the new generation
	var addsNewEvents bool
	for _, raw := range actions {
		action := raw.(map[string]any)
		if add, ok := action["add"].(map[string]any); ok {
			if add["index"] == "faultline-v2-events-*" && add["alias"] == "faultline-events" {
				addsNewEvents = true
			}
		}
	}
	assert.True(t, addsNewEvents)
}

func TestIndexNaming(t *testing.T) {
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "faultline-main", MainIndex("faultline"))
	assert.Equal(t, "faultline-v2-stack", CollectionIndex("faultline", "stack"))
	assert.Equal(t, "faultline-events-2026.08.26", EventIndex("faultline", day))
	assert.Equal(t, "faultline-v2-events-2026.08.26", NewEventIndex("faultline", day))
	assert.Equal(t, "faultline-events", EventAlias("faultline"))
}
