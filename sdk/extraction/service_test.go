package extraction

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/testutil"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/notification"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/schema"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolling = poll.Options{Interval: time.Millisecond, MaxWait: 2 * time.Second}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeSetup struct {
	got []notification.Options
}

func (f *fakeSetup) Setup(_ context.Context, opts notification.Options) ([]notification.Settings, error) {
	f.got = append(f.got, opts)
	return []notification.Settings{{ID: "s-1"}}, nil
}

type fixture struct {
	srv       *testutil.APIServer
	svc       *Service
	published *recorder
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	srv := testutil.NewAPIServer(t)
	client, err := transport.New(transport.Config{BaseURL: srv.URL, APIKey: "tk"})
	require.NoError(t, err)
	rec := &recorder{}
	workflows := workflow.NewService(client, workflow.WithPublisher(rec))
	resolver := NewEntityResolver(client, schema.NewService(client), rec)
	svc := NewService(workflows, NewDataFetcher(client), resolver, append([]Option{WithPublisher(rec)}, opts...)...)
	return fixture{srv: srv, svc: svc, published: rec}
}

func (f fixture) detectProduct() {
	f.srv.JSON(http.MethodPost, entityPath, http.StatusOK, map[string]any{
		"success": true,
		"entityPrediction": []any{map[string]any{
			"entity": "Product",
			"fields": []any{map[string]any{
				"name": "title", "description": "Title", "fieldType": "SCHEMA", "dataType": "STRING", "example": "Shoe",
			}},
		}},
	})
}

func TestEntityResolver(t *testing.T) {
	t.Parallel()
	t.Run("Should detect the entity and publish entity:detected", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.detectProduct()

		got, err := f.svc.entities.Resolve(ctx, EntityConfig{}, ResolveInput{
			Link: "https://example.com", Location: &workflow.Location{Type: "auto"}, NavigationMode: "single-page",
		})

		require.NoError(t, err)
		assert.Equal(t, "Product", got.Entity)
		require.Len(t, got.Fields, 1)
		last, _ := f.srv.Last(http.MethodPost, entityPath)
		testutil.AssertJSONEqual(t, map[string]any{
			"link": "https://example.com", "location": map[string]any{"type": "auto"}, "navigationMode": "single-page",
		}, last.Body)
		require.Equal(t, []events.Type{events.TypeEntityDetected}, f.published.types())
		assert.Equal(t, []string{"title"}, f.published.events[0].Payload.(events.EntityDetected).Fields)
	})
	t.Run("Should report missing predictions as not found", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.JSON(http.MethodPost, entityPath, http.StatusOK, map[string]any{"success": true, "entityPrediction": []any{}})

		_, err := f.svc.entities.Resolve(ctx, EntityConfig{}, ResolveInput{Link: "https://example.com"})

		assert.Equal(t, sdkerrors.CodeNotFound, sdkerrors.CodeOf(err))
	})
	t.Run("Should require a link for detection", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)

		_, err := f.svc.entities.Resolve(ctx, EntityConfig{}, ResolveInput{})

		assert.Equal(t, sdkerrors.CodeValidation, sdkerrors.CodeOf(err))
		assert.Empty(t, f.srv.Requests())
	})
	t.Run("Should pass explicit entities through", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		def := productSchema()

		got, err := f.svc.entities.Resolve(ctx, EntityConfig{Name: def.EntityName, Fields: def.Fields}, ResolveInput{})

		require.NoError(t, err)
		assert.Equal(t, "Product", got.Entity)
		assert.Empty(t, f.srv.Requests())
	})
	t.Run("Should load stored schemas", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.JSON(http.MethodGet, "/v4/schemas/sch-1", http.StatusOK, map[string]any{"data": map[string]any{
			"id": "sch-1", "name": "Products", "entity": "Product", "schema": []any{map[string]any{"name": "title"}},
		}})

		got, err := f.svc.entities.Resolve(ctx, EntityConfig{SchemaID: "sch-1"}, ResolveInput{})

		require.NoError(t, err)
		assert.Equal(t, "Product", got.Entity)
		assert.Equal(t, "title", got.Fields[0].Name)
	})
}

func TestDataFetcher(t *testing.T) {
	t.Parallel()
	page := func(n, total int, records ...map[string]any) testutil.Response {
		return testutil.Response{Body: map[string]any{
			"workflowId": "wf-1",
			"data":       records,
			"pagination": map[string]any{"page": n, "totalPages": total, "totalCount": 5, "limit": 2},
		}}
	}
	t.Run("Should default page and limit", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.Sequence(http.MethodGet, "/v4/workflows/wf-1/data", page(1, 1, map[string]any{"title": "a"}))

		got, err := f.svc.Data().FetchData(ctx, FetchDataOptions{WorkflowID: "wf-1", RunID: "job-1", IncludeAnomalies: true})

		require.NoError(t, err)
		assert.Len(t, got.Data, 1)
		last, _ := f.srv.Last(http.MethodGet, "/v4/workflows/wf-1/data")
		assert.Equal(t, "1", last.Query.Get("page"))
		assert.Equal(t, "100", last.Query.Get("limit"))
		assert.Equal(t, "job-1", last.Query.Get("runId"))
		assert.Equal(t, "true", last.Query.Get("includeAnomalies"))
		assert.False(t, last.Query.Has("sortBy"))
	})
	t.Run("Should collect every page", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.Sequence(http.MethodGet, "/v4/workflows/wf-1/data",
			page(1, 3, map[string]any{"n": 1}, map[string]any{"n": 2}),
			page(2, 3, map[string]any{"n": 3}, map[string]any{"n": 4}),
			page(3, 3, map[string]any{"n": 5}),
		)

		all, err := f.svc.Data().FetchAllData(ctx, FetchDataOptions{WorkflowID: "wf-1", Limit: 2})

		require.NoError(t, err)
		assert.Len(t, all, 5)
		assert.Equal(t, 3, f.srv.Calls(http.MethodGet, "/v4/workflows/wf-1/data"))
	})
	t.Run("Should stop on an empty page", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.Sequence(http.MethodGet, "/v4/workflows/wf-1/data", page(1, 10))

		all, err := f.svc.Data().FetchAllData(ctx, FetchDataOptions{WorkflowID: "wf-1"})

		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, 1, f.srv.Calls(http.MethodGet, "/v4/workflows/wf-1/data"))
	})
	t.Run("Should stop iterating when the consumer breaks", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.Sequence(http.MethodGet, "/v4/workflows/wf-1/data", page(1, 3, map[string]any{"n": 1}))

		for p, err := range f.svc.Data().FetchPages(ctx, FetchDataOptions{WorkflowID: "wf-1"}) {
			require.NoError(t, err)
			assert.Equal(t, 1, p.Pagination.Page)
			break
		}

		assert.Equal(t, 1, f.srv.Calls(http.MethodGet, "/v4/workflows/wf-1/data"))
	})
	t.Run("Should surface fetch errors", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.JSON(http.MethodGet, "/v4/workflows/wf-1/data", http.StatusForbidden, map[string]any{"message": "no"})

		_, err := f.svc.Data().FetchAllData(ctx, FetchDataOptions{WorkflowID: "wf-1"})

		assert.True(t, sdkerrors.IsTransport(err))
	})
}

func TestService_Extract(t *testing.T) {
	t.Parallel()
	extraction := func(t *testing.T) Options {
		opts, err := New("https://example.com").WithPolling(fastPolling).Build(testutil.NewTestContext(t))
		require.NoError(t, err)
		return opts
	}
	t.Run("Should create, wait and fetch data", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.detectProduct()
		f.srv.JSON(http.MethodPost, "/v4/workflows", http.StatusOK, map[string]any{"workflowId": "wf-1"})
		f.srv.Sequence(http.MethodGet, "/v4/workflows/wf-1",
			testutil.Response{Body: map[string]any{"_id": "wf-1", "state": "ACTIVE", "runState": "RUNNING"}},
			testutil.Response{Body: map[string]any{"_id": "wf-1", "state": "ACTIVE", "runState": "FINISHED"}},
		)
		f.srv.JSON(http.MethodGet, "/v4/workflows/wf-1/data", http.StatusOK, map[string]any{
			"data":       []any{map[string]any{"title": "Shoe"}},
			"pagination": map[string]any{"page": 1, "totalPages": 1, "totalCount": 1},
		})

		res, err := f.svc.Extract(ctx, extraction(t), ModeRun)

		require.NoError(t, err)
		assert.Equal(t, "wf-1", res.WorkflowID)
		assert.Equal(t, "FINISHED", res.Status.RunState)
		assert.Equal(t, []map[string]any{{"title": "Shoe"}}, res.Data)
		created, _ := f.srv.Last(http.MethodPost, "/v4/workflows")
		testutil.AssertJSONEqual(t, map[string]any{
			"urls":           []string{"https://example.com"},
			"name":           DefaultName,
			"navigationMode": "single-page",
			"entity":         "Product",
			"fields": []any{map[string]any{
				"name": "title", "description": "Title", "fieldType": "SCHEMA", "dataType": "STRING", "example": "Shoe",
			}},
			"bypassPreview": true,
			"location":      map[string]any{"type": "auto"},
			"autoStart":     true,
		}, created.Body)
		assert.Equal(t, []events.Type{
			events.TypeEntityDetected,
			events.TypeExtractionStarted,
			events.TypeStatusChanged,
			events.TypeStatusChanged,
			events.TypeDataAvailable,
			events.TypeExtractionCompleted,
		}, f.published.types())
	})
	t.Run("Should return right after creation in submit mode", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.detectProduct()
		f.srv.JSON(http.MethodPost, "/v4/workflows", http.StatusOK, map[string]any{"workflowId": "wf-2"})

		res, err := f.svc.Extract(ctx, extraction(t), ModeSubmit)

		require.NoError(t, err)
		assert.Equal(t, "wf-2", res.WorkflowID)
		assert.Zero(t, f.srv.Calls(http.MethodGet, "/v4/workflows/wf-2"))
	})
	t.Run("Should report unsuccessful terminal states", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.detectProduct()
		f.srv.JSON(http.MethodPost, "/v4/workflows", http.StatusOK, map[string]any{"workflowId": "wf-3"})
		f.srv.JSON(http.MethodGet, "/v4/workflows/wf-3", http.StatusOK,
			map[string]any{"_id": "wf-3", "state": "ACTIVE", "runState": "FAILED"})

		_, err := f.svc.Extract(ctx, extraction(t), ModeRun)

		var serr *sdkerrors.Error
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, sdkerrors.CodeInternal, serr.Code)
		assert.Equal(t, "FAILED", serr.Details["runState"])
		assert.Equal(t, "wf-3", serr.Details["workflowId"])
		assert.Zero(t, f.srv.Calls(http.MethodGet, "/v4/workflows/wf-3/data"))
	})
	t.Run("Should surface the watcher timeout", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.detectProduct()
		f.srv.JSON(http.MethodPost, "/v4/workflows", http.StatusOK, map[string]any{"workflowId": "wf-4"})
		f.srv.JSON(http.MethodGet, "/v4/workflows/wf-4", http.StatusOK,
			map[string]any{"_id": "wf-4", "state": "ACTIVE", "runState": "RUNNING"})
		opts := extraction(t)
		opts.Polling = poll.Options{Interval: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}

		_, err := f.svc.Extract(ctx, opts, ModeRun)

		var terr *sdkerrors.TimeoutError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "wf-4", terr.WorkflowID)
	})
}

func TestService_CreateAndRun(t *testing.T) {
	t.Parallel()
	t.Run("Should create a stopped workflow from a schema id and set up notifications", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		setup := &fakeSetup{}
		f := newFixture(t, WithNotificationSetup(setup))
		f.srv.JSON(http.MethodPost, "/v4/workflows", http.StatusOK, map[string]any{"workflowId": "wf-1"})
		opts, err := New("https://example.com").
			WithSchemaID("sch-1").
			WithNotifications(notification.Options{Events: []notification.EventType{notification.EventWorkflowFailed}}).
			Build(ctx)
		require.NoError(t, err)

		created, err := f.svc.Create(ctx, opts)

		require.NoError(t, err)
		assert.Equal(t, "wf-1", created.WorkflowID)
		assert.Zero(t, f.srv.Calls(http.MethodPost, entityPath))
		last, _ := f.srv.Last(http.MethodPost, "/v4/workflows")
		testutil.AssertJSONEqual(t, map[string]any{
			"urls":           []string{"https://example.com"},
			"name":           DefaultName,
			"navigationMode": "single-page",
			"schemaId":       "sch-1",
			"bypassPreview":  true,
			"location":       map[string]any{"type": "auto"},
			"autoStart":      false,
		}, last.Body)
		require.Len(t, setup.got, 1)
		assert.Equal(t, "wf-1", setup.got[0].WorkflowID)
	})
	t.Run("Should refuse notifications without a setup service", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)

		_, err := f.svc.Create(ctx, Options{URLs: []string{"https://example.com"}, Notifications: &notification.Options{}})

		assert.Equal(t, sdkerrors.CodeConfig, sdkerrors.CodeOf(err))
		assert.Empty(t, f.srv.Requests())
	})
	t.Run("Should run a job, wait for it and fetch its data", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.JSON(http.MethodPut, "/v4/workflows/wf-1/run", http.StatusOK, map[string]any{"jobId": "job-1"})
		f.srv.Sequence(http.MethodGet, "/v4/workflows/wf-1/jobs/job-1",
			testutil.Response{Body: map[string]any{"workflowId": "wf-1", "jobId": "job-1", "state": "IN_PROGRESS"}},
			testutil.Response{Body: map[string]any{"workflowId": "wf-1", "jobId": "job-1", "state": "FINISHED"}},
		)
		f.srv.JSON(http.MethodGet, "/v4/workflows/wf-1/data", http.StatusOK, map[string]any{
			"data":       []any{map[string]any{"n": 1}},
			"pagination": map[string]any{"page": 1, "totalPages": 2, "totalCount": 2},
		})

		res, err := f.svc.Run(ctx, "wf-1", RunOptions{Limit: 10, Polling: fastPolling})

		require.NoError(t, err)
		assert.Equal(t, "job-1", res.JobID)
		assert.Equal(t, 2, res.Pagination.TotalCount)
		data, _ := f.srv.Last(http.MethodGet, "/v4/workflows/wf-1/data")
		assert.Equal(t, "job-1", data.Query.Get("runId"))
		run, _ := f.srv.Last(http.MethodPut, "/v4/workflows/wf-1/run")
		testutil.AssertJSONEqual(t, map[string]any{"limit": 10}, run.Body)
		assert.Contains(t, f.published.types(), events.TypeDataAvailable)
	})
	t.Run("Should submit a job without waiting", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		f := newFixture(t)
		f.srv.JSON(http.MethodPut, "/v4/workflows/wf-1/run", http.StatusOK, map[string]any{"jobId": "job-9"})

		got, err := f.svc.Submit(ctx, "wf-1", RunOptions{})

		require.NoError(t, err)
		assert.Equal(t, Submitted{WorkflowID: "wf-1", JobID: "job-9"}, *got)
		assert.Zero(t, f.srv.Calls(http.MethodGet, "/v4/workflows/wf-1/jobs/job-9"))
		assert.Equal(t, []events.Type{events.TypeExtractionStarted}, f.published.types())
	})
}
