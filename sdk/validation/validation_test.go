package validation

import (
	"net/http"
	"testing"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/testutil"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, srv *testutil.APIServer) *Service {
	t.Helper()
	client, err := transport.New(transport.Config{BaseURL: srv.URL, APIKey: "tk"})
	require.NoError(t, err)
	return NewService(client)
}

func TestRules(t *testing.T) {
	t.Parallel()
	t.Run("Should list rules and filter by workflow", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, rulesPath, http.StatusOK, map[string]any{
			"error": false,
			"data":  []any{map[string]any{"id": "r-1", "name": "title-not-empty", "ruleType": "custom_sql"}},
		})

		rules, err := newService(t, srv).Rules().List(ctx, ListRulesOptions{WorkflowID: "wf-1"})

		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "custom_sql", rules[0].RuleType)
		last, _ := srv.Last(http.MethodGet, rulesPath)
		assert.Equal(t, "wf-1", last.Query.Get("workflowId"))
	})
	t.Run("Should turn an error flag into an SDK error", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodPost, rulesPath, http.StatusOK, map[string]any{"error": true, "message": "bad sql"})

		_, err := newService(t, srv).Rules().Create(ctx, CreateRuleInput{
			Name: "r", RuleType: "custom_sql", WorkflowID: "wf-1",
		})

		var serr *sdkerrors.Error
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "bad sql", serr.Message)
	})
	t.Run("Should treat error strings and null distinctly", func(t *testing.T) {
		t.Parallel()
		cases := map[string]bool{
			`null`:         false,
			`false`:        false,
			`""`:           false,
			`"boom"`:       true,
			`true`:         true,
			`{"code":"E"}`: true,
		}
		for raw, want := range cases {
			assert.Equal(t, want, envelope[any]{Error: []byte(raw)}.failed(), raw)
		}
		assert.False(t, envelope[any]{}.failed())
	})
	t.Run("Should find rules by name", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, rulesPath, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"id": "r-1", "name": "a"},
			map[string]any{"id": "r-2", "name": "b"},
		}})
		rules := newService(t, srv).Rules()

		found, err := rules.GetByName(ctx, "b")
		require.NoError(t, err)
		missing, err := rules.GetByName(ctx, "c")
		require.NoError(t, err)

		assert.Equal(t, "r-2", found.ID)
		assert.Nil(t, missing)
	})
	t.Run("Should send rule actions to their endpoints", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodPost, rulesPath+"/r-1/disable", http.StatusOK,
			map[string]any{"data": map[string]any{"id": "r-1", "status": "disabled"}})
		srv.JSON(http.MethodPost, rulesPath+"/actions/generate-rules", http.StatusOK,
			map[string]any{"data": []any{map[string]any{"id": "r-2"}, map[string]any{"id": "r-3"}}})
		srv.JSON(http.MethodPost, rulesPath+"/actions/bulk-approve", http.StatusOK,
			map[string]any{"data": map[string]any{"processedCount": 2}})
		srv.JSON(http.MethodDelete, rulesPath+"/actions/delete-all", http.StatusOK,
			map[string]any{"data": map[string]any{"deletedCount": 3}})
		rules := newService(t, srv).Rules()

		disabled, err := rules.Disable(ctx, "r-1", "noisy")
		require.NoError(t, err)
		generated, err := rules.GenerateRules(ctx, GenerateRulesInput{WorkflowID: "wf-1"})
		require.NoError(t, err)
		approved, err := rules.BulkApprove(ctx, BulkInput{WorkflowID: "wf-1", RuleIDs: []string{"r-2", "r-3"}})
		require.NoError(t, err)
		deleted, err := rules.DeleteAll(ctx, DeleteAllInput{WorkflowID: "wf-1", Reason: "reset"})
		require.NoError(t, err)

		assert.Equal(t, "disabled", disabled.Status)
		assert.Len(t, generated, 2)
		assert.Equal(t, 2, approved.ProcessedCount)
		assert.Equal(t, 3, deleted.DeletedCount)
		last, _ := srv.Last(http.MethodPost, rulesPath+"/r-1/disable")
		testutil.AssertJSONEqual(t, map[string]any{"disabledReason": "noisy"}, last.Body)
	})
	t.Run("Should require rule ids for bulk actions", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)

		_, err := newService(t, srv).Rules().BulkDelete(ctx, BulkInput{WorkflowID: "wf-1"})

		assert.Equal(t, sdkerrors.CodeValidation, sdkerrors.CodeOf(err))
		assert.Empty(t, srv.Requests())
	})
}

func TestService(t *testing.T) {
	t.Parallel()
	t.Run("Should schedule a validation and read the latest report", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodPost, "/v4/data-validation/workflows/wf-1/jobs/job-1/validate", http.StatusOK,
			map[string]any{"validationId": "val-1"})
		srv.JSON(http.MethodGet, "/v4/data-validation/workflows/wf-1/validations/latest", http.StatusOK,
			map[string]any{"id": "val-1", "workflowId": "wf-1", "anomaliesCountTotal": 4})
		svc := newService(t, srv)

		scheduled, err := svc.Schedule(ctx, "wf-1", "job-1")
		require.NoError(t, err)
		latest, err := svc.Latest(ctx, "wf-1", "")
		require.NoError(t, err)

		assert.Equal(t, "val-1", scheduled.ValidationID)
		assert.Equal(t, 4, latest.AnomaliesCountTotal)
	})
	t.Run("Should list validations and anomalies", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v4/data-validation/workflows/wf-1/jobs/job-1/validations", http.StatusOK,
			map[string]any{"data": []any{map[string]any{"id": "val-1"}}, "pagination": map[string]any{"totalCount": 1}})
		srv.JSON(http.MethodGet, "/v4/data-validation/validations/val-1/anomalies", http.StatusOK,
			map[string]any{"validationId": "val-1", "anomaliesByRule": []any{
				map[string]any{"ruleName": "not-empty", "anomalies": []any{map[string]any{"__column__": "title"}}},
			}})
		srv.JSON(http.MethodGet, "/v4/data-validation/validations/val-1/anomalies/rules/not-empty", http.StatusOK,
			map[string]any{"ruleName": "not-empty", "anomalies": []any{}})
		svc := newService(t, srv)

		list, err := svc.ListWorkflowValidations(ctx, ListValidationsOptions{WorkflowID: "wf-1", JobID: "job-1", IncludeDryRun: true})
		require.NoError(t, err)
		all, err := svc.Anomalies(ctx, "val-1")
		require.NoError(t, err)
		byRule, err := svc.AnomaliesByRule(ctx, "val-1", "not-empty")
		require.NoError(t, err)

		assert.Equal(t, 1, list.Pagination.TotalCount)
		require.Len(t, all.AnomaliesByRule, 1)
		assert.Equal(t, "title", all.AnomaliesByRule[0].Anomalies[0]["__column__"])
		assert.Equal(t, "not-empty", byRule.RuleName)
		last, _ := srv.Last(http.MethodGet, "/v4/data-validation/workflows/wf-1/jobs/job-1/validations")
		assert.Equal(t, "true", last.Query.Get("includeDryRun"))
	})
	t.Run("Should toggle validation for a workflow", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodPut, "/v4/data-validation/workflows/wf-1/validation/toggle", http.StatusOK,
			map[string]any{"enabled": false})

		res, err := newService(t, srv).ToggleEnabled(ctx, "wf-1")

		require.NoError(t, err)
		assert.False(t, res.Enabled)
	})
}

func TestService_WaitUntilCompleted(t *testing.T) {
	t.Parallel()
	opts := poll.Options{Interval: time.Millisecond, MaxWait: 2 * time.Second}
	t.Run("Should poll until completedAt is set", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.Sequence(http.MethodGet, "/v4/data-validation/validations/val-1",
			testutil.Response{Body: map[string]any{"id": "val-1"}},
			testutil.Response{Body: map[string]any{"id": "val-1"}},
			testutil.Response{Body: map[string]any{"id": "val-1", "completedAt": "2026-01-02T03:04:05Z"}},
		)

		report, err := newService(t, srv).WaitUntilCompleted(ctx, "val-1", opts)

		require.NoError(t, err)
		assert.True(t, report.Completed())
		assert.Equal(t, 3, srv.Calls(http.MethodGet, "/v4/data-validation/validations/val-1"))
	})
	t.Run("Should stop on a report error", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v4/data-validation/validations/val-1", http.StatusOK,
			map[string]any{"id": "val-1", "error": "rule crashed"})

		_, err := newService(t, srv).WaitUntilCompleted(ctx, "val-1", opts)

		var serr *sdkerrors.Error
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, sdkerrors.CodeValidation, serr.Code)
		assert.Equal(t, "rule crashed", serr.Details["error"])
		assert.Equal(t, 1, srv.Calls(http.MethodGet, "/v4/data-validation/validations/val-1"))
	})
	t.Run("Should time out while the validation is running", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v4/data-validation/validations/val-1", http.StatusOK, map[string]any{"id": "val-1"})

		_, err := newService(t, srv).WaitUntilCompleted(ctx, "val-1",
			poll.Options{Interval: 5 * time.Millisecond, MaxWait: 20 * time.Millisecond})

		assert.Equal(t, sdkerrors.CodeTimeout, sdkerrors.CodeOf(err))
		assert.ErrorIs(t, err, poll.ErrBudgetExhausted)
	})
}
