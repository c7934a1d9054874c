// Package validation manages data validation rules and the validation runs
// executed against workflow jobs.
package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

const basePath = "/v4/data-validation"

// Service reads and schedules validation runs.
type Service struct {
	client *transport.Client
	rules  *Rules
}

// NewService creates a validation service.
func NewService(client *transport.Client) *Service {
	return &Service{client: client, rules: NewRules(client)}
}

// Rules returns the rule service.
func (s *Service) Rules() *Rules {
	return s.rules
}

func jobPath(workflowID, jobID string, suffix string) string {
	return basePath + "/workflows/" + url.PathEscape(workflowID) + "/jobs/" + url.PathEscape(jobID) + suffix
}

func validationPath(id string, suffix string) string {
	return basePath + "/validations/" + url.PathEscape(id) + suffix
}

// ListWorkflowValidations lists validation runs of a job.
func (s *Service) ListWorkflowValidations(ctx context.Context, opts ListValidationsOptions) (*ValidationList, error) {
	if err := requireID(ctx, "workflow id", opts.WorkflowID); err != nil {
		return nil, err
	}
	if err := requireID(ctx, "job id", opts.JobID); err != nil {
		return nil, err
	}
	q := []transport.Option{intParam("page", opts.Page), intParam("pageSize", opts.PageSize)}
	if opts.IncludeDryRun {
		q = append(q, transport.WithParam("includeDryRun", "true"))
	}
	list, err := transport.Do[ValidationList](ctx, s.client, http.MethodGet,
		jobPath(opts.WorkflowID, opts.JobID, "/validations"), q...)
	if err != nil {
		return nil, err
	}
	if list.Data == nil {
		list.Data = []Report{}
	}
	return &list, nil
}

// Get fetches one validation report. A report carrying an error is returned with an *sdkerrors.Error.
func (s *Service) Get(ctx context.Context, validationID string) (*Report, error) {
	if err := requireID(ctx, "validation id", validationID); err != nil {
		return nil, err
	}
	report, err := transport.Do[Report](ctx, s.client, http.MethodGet, validationPath(validationID, ""), transport.NoRetry())
	if err != nil {
		return nil, err
	}
	if report.Error != "" {
		return &report, sdkerrors.New(sdkerrors.CodeValidation, "validation failed: "+report.Error).
			WithDetails(map[string]any{"validationId": validationID, "error": report.Error})
	}
	return &report, nil
}

// Schedule starts a validation run for a job.
func (s *Service) Schedule(ctx context.Context, workflowID, jobID string) (*ScheduleResult, error) {
	if err := requireID(ctx, "workflow id", workflowID); err != nil {
		return nil, err
	}
	if err := requireID(ctx, "job id", jobID); err != nil {
		return nil, err
	}
	res, err := transport.Do[ScheduleResult](ctx, s.client, http.MethodPost, jobPath(workflowID, jobID, "/validate"))
	if err != nil {
		return nil, err
	}
	if res.ValidationID == "" {
		msg := res.Message
		if msg == "" {
			msg = "failed to schedule validation"
		}
		return nil, sdkerrors.New(sdkerrors.CodeInternal, msg)
	}
	logger.FromContext(ctx).Info("validation scheduled", "workflow_id", workflowID, "job_id", jobID,
		"validation_id", res.ValidationID)
	return &res, nil
}

// ToggleEnabled flips validation on or off for a workflow.
func (s *Service) ToggleEnabled(ctx context.Context, workflowID string) (*ToggleResult, error) {
	if err := requireID(ctx, "workflow id", workflowID); err != nil {
		return nil, err
	}
	res, err := transport.Do[ToggleResult](ctx, s.client, http.MethodPut,
		basePath+"/workflows/"+url.PathEscape(workflowID)+"/validation/toggle")
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Latest returns the newest validation of a workflow, or of one job when jobID is set.
func (s *Service) Latest(ctx context.Context, workflowID, jobID string) (*Report, error) {
	if err := requireID(ctx, "workflow id", workflowID); err != nil {
		return nil, err
	}
	path := basePath + "/workflows/" + url.PathEscape(workflowID) + "/validations/latest"
	if jobID != "" {
		path = jobPath(workflowID, jobID, "/validations/latest")
	}
	report, err := transport.Do[Report](ctx, s.client, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if report.Error != "" {
		return &report, sdkerrors.New(sdkerrors.CodeValidation, "validation failed: "+report.Error)
	}
	return &report, nil
}

// Anomalies lists the anomalies of a validation grouped by rule.
func (s *Service) Anomalies(ctx context.Context, validationID string) (*AnomaliesByRule, error) {
	if err := requireID(ctx, "validation id", validationID); err != nil {
		return nil, err
	}
	res, err := transport.Do[AnomaliesByRule](ctx, s.client, http.MethodGet, validationPath(validationID, "/anomalies"))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// AnomaliesByRule lists the anomalies one rule found.
func (s *Service) AnomaliesByRule(ctx context.Context, validationID, ruleName string) (*RuleAnomalies, error) {
	if err := requireID(ctx, "validation id", validationID); err != nil {
		return nil, err
	}
	if err := requireID(ctx, "rule name", ruleName); err != nil {
		return nil, err
	}
	res, err := transport.Do[RuleAnomalies](ctx, s.client, http.MethodGet,
		validationPath(validationID, "/anomalies/rules/"+url.PathEscape(ruleName)))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// WaitUntilCompleted polls a validation until completedAt is set. A report
// carrying an error stops the wait with that error.
func (s *Service) WaitUntilCompleted(ctx context.Context, validationID string, opts poll.Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid polling config", err)
	}
	res, err := poll.Until(ctx, opts, func(ctx context.Context) (*Report, error) {
		return s.Get(ctx, validationID)
	}, func(r *Report) bool {
		return r.Completed()
	})
	if errors.Is(err, poll.ErrBudgetExhausted) {
		return res.Value, sdkerrors.Wrap(sdkerrors.CodeTimeout,
			fmt.Sprintf("validation %s did not complete within %s", validationID, opts.MaxWait), err)
	}
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}
