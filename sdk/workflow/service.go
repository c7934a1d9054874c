// Package workflow manages workflows on the platform and waits for them to finish.
package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

const workflowsPath = "/v4/workflows"

// Service wraps the workflow endpoints.
type Service struct {
	client  *transport.Client
	watcher *Watcher
	jobs    TerminalSet
}

// NewService creates a workflow service. opts configure the completion watcher.
func NewService(client *transport.Client, opts ...WatcherOption) *Service {
	s := &Service{client: client, jobs: NewTerminalSet(TerminalJobStates...)}
	s.watcher = NewWatcher(s, opts...)
	return s
}

// Watcher returns the watcher used by WaitForCompletion.
func (s *Service) Watcher() *Watcher {
	return s.watcher
}

func workflowPath(id string, suffix ...string) string {
	p := workflowsPath + "/" + url.PathEscape(id)
	for _, part := range suffix {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func requireID(ctx context.Context, name, id string) error {
	if err := validate.NonEmpty(ctx, name, id); err != nil {
		return sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid "+name, err)
	}
	return nil
}

type createResponse struct {
	WorkflowID string `json:"workflowId"`
}

// Create creates a workflow and returns its id. BypassPreview defaults to true.
func (s *Service) Create(ctx context.Context, input CreateInput) (string, error) {
	if len(input.URLs) == 0 {
		return "", sdkerrors.New(sdkerrors.CodeValidation, "at least one url is required")
	}
	if input.BypassPreview == nil {
		bypass := true
		input.BypassPreview = &bypass
	}
	logger.FromContext(ctx).Debug("creating workflow", "name", input.Name, "urls", len(input.URLs))
	resp, err := transport.Do[createResponse](ctx, s.client, http.MethodPost, workflowsPath, transport.WithBody(input))
	if err != nil {
		return "", err
	}
	if resp.WorkflowID == "" {
		return "", sdkerrors.New(sdkerrors.CodeInternal, "workflow creation returned no id")
	}
	return resp.WorkflowID, nil
}

// Get fetches a workflow.
func (s *Service) Get(ctx context.Context, id string) (*Workflow, error) {
	if err := requireID(ctx, "workflow id", id); err != nil {
		return nil, err
	}
	wf, err := transport.Do[Workflow](ctx, s.client, http.MethodGet, workflowPath(id))
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// FetchStatus reads the workflow status in a single round trip without retry.
func (s *Service) FetchStatus(ctx context.Context, id string) (Status, error) {
	if err := requireID(ctx, "workflow id", id); err != nil {
		return Status{}, err
	}
	wf, err := transport.Do[Workflow](ctx, s.client, http.MethodGet, workflowPath(id), transport.NoRetry())
	if err != nil {
		return Status{}, err
	}
	return wf.Status(), nil
}

type listResponse struct {
	Workflows []Workflow `json:"workflows"`
}

// List returns workflows matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Workflow, error) {
	resp, err := transport.Do[listResponse](ctx, s.client, http.MethodGet, workflowsPath,
		transport.WithQuery(filters.query()))
	if err != nil {
		return nil, err
	}
	return resp.Workflows, nil
}

// GetByName returns the first workflow whose search matches name, or nil.
func (s *Service) GetByName(ctx context.Context, name string) (*Workflow, error) {
	list, err := s.List(ctx, ListFilters{Search: name})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// Delete removes a workflow.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := requireID(ctx, "workflow id", id); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("deleting workflow", "workflow_id", id)
	return s.client.Exec(ctx, http.MethodDelete, workflowPath(id))
}

// Cancel stops a workflow. The platform treats it as a delete.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.Delete(ctx, id)
}

// Resume resumes a paused workflow.
func (s *Service) Resume(ctx context.Context, id string) error {
	if err := requireID(ctx, "workflow id", id); err != nil {
		return err
	}
	return s.client.Exec(ctx, http.MethodPut, workflowPath(id, "resume"))
}

// Run starts a run of workflow id.
func (s *Service) Run(ctx context.Context, id string, input RunInput) (*StartedJob, error) {
	if err := requireID(ctx, "workflow id", id); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("running workflow", "workflow_id", id, "limit", input.Limit)
	job, err := transport.Do[StartedJob](ctx, s.client, http.MethodPut, workflowPath(id, "run"), transport.WithBody(input))
	if err != nil {
		return nil, err
	}
	if job.JobID == "" {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "workflow run returned no job id").
			WithDetails(map[string]any{"workflowId": id, "message": job.Message})
	}
	return &job, nil
}

// GetJobStatus fetches the state of one job.
func (s *Service) GetJobStatus(ctx context.Context, workflowID, jobID string) (*Job, error) {
	if err := requireID(ctx, "workflow id", workflowID); err != nil {
		return nil, err
	}
	if err := requireID(ctx, "job id", jobID); err != nil {
		return nil, err
	}
	job, err := transport.Do[Job](ctx, s.client, http.MethodGet, workflowPath(workflowID, "jobs", jobID), transport.NoRetry())
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForCompletion waits until the workflow's run state is terminal.
func (s *Service) WaitForCompletion(ctx context.Context, id string, cfg PollingConfig) (Status, error) {
	return s.watcher.WaitForCompletion(ctx, id, cfg)
}

// WaitForJobCompletion waits until a job reaches FINISHED, FAILED, NOT_SUPPORTED
// or FAILED_INSUFFICIENT_FUNDS.
func (s *Service) WaitForJobCompletion(ctx context.Context, workflowID, jobID string, cfg PollingConfig) (*Job, error) {
	if err := requireID(ctx, "job id", jobID); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid polling config", err)
	}
	log := logger.FromContext(ctx).With("workflow_id", workflowID, "job_id", jobID)
	var lastState *string
	res, err := poll.Until(ctx, cfg, func(ctx context.Context) (*Job, error) {
		job, err := s.GetJobStatus(ctx, workflowID, jobID)
		if err != nil {
			return nil, err
		}
		if lastState == nil || *lastState != job.State {
			log.Debug("job state changed", "state", job.State)
			state := job.State
			lastState = &state
		}
		return job, nil
	}, func(job *Job) bool {
		return s.jobs.Contains(job.State)
	})
	if errors.Is(err, poll.ErrBudgetExhausted) {
		return res.Value, &sdkerrors.TimeoutError{WorkflowID: workflowID, MaxWaitTime: cfg.MaxWait}
	}
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}
