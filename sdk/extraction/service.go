// Package extraction creates extraction workflows, runs them and fetches their data.
package extraction

import (
	"context"
	"fmt"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/notification"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
)

// NotificationSetup configures notifications for a new workflow.
type NotificationSetup interface {
	Setup(ctx context.Context, opts notification.Options) ([]notification.Settings, error)
}

// Service orchestrates workflow creation, runs and data retrieval.
type Service struct {
	workflows     *workflow.Service
	data          *DataFetcher
	entities      *EntityResolver
	notifications NotificationSetup
	publisher     events.Publisher
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sets the destination of extraction events.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithNotificationSetup enables notification setup for created workflows.
func WithNotificationSetup(n NotificationSetup) Option {
	return func(s *Service) {
		s.notifications = n
	}
}

// NewService creates an extraction service.
func NewService(workflows *workflow.Service, data *DataFetcher, entities *EntityResolver, opts ...Option) *Service {
	s := &Service{workflows: workflows, data: data, entities: entities, publisher: events.Discard}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Data returns the data fetcher.
func (s *Service) Data() *DataFetcher {
	return s.data
}

// Create resolves the entity, creates a workflow that is not started and sets
// up notifications when requested.
func (s *Service) Create(ctx context.Context, opts Options) (*CreatedExtraction, error) {
	id, err := s.create(ctx, opts, false)
	if err != nil {
		return nil, err
	}
	return &CreatedExtraction{WorkflowID: id, Options: opts}, nil
}

// Run starts a job of workflowID, waits for the job to finish and returns the
// first page of its data.
func (s *Service) Run(ctx context.Context, workflowID string, opts RunOptions) (*Result, error) {
	started, err := s.workflows.Run(ctx, workflowID, workflow.RunInput{Variables: opts.Variables, Limit: opts.Limit})
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("workflow_id", workflowID, "job_id", started.JobID)
	log.Info("job started")
	s.publisher.Publish(ctx, events.New(events.TypeExtractionStarted, workflowID,
		events.ExtractionStarted{WorkflowID: workflowID, JobID: started.JobID}))
	job, err := s.workflows.WaitForJobCompletion(ctx, workflowID, started.JobID, pollingOrDefault(opts.Polling))
	if err != nil {
		return nil, err
	}
	log.Info("job finished", "state", job.State)
	return s.finish(ctx, workflowID, started.JobID, workflow.Status{State: job.State, RunState: job.State})
}

// Submit starts a job of workflowID without waiting for it.
func (s *Service) Submit(ctx context.Context, workflowID string, opts RunOptions) (*Submitted, error) {
	started, err := s.workflows.Run(ctx, workflowID, workflow.RunInput{Variables: opts.Variables, Limit: opts.Limit})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.New(events.TypeExtractionStarted, workflowID,
		events.ExtractionStarted{WorkflowID: workflowID, JobID: started.JobID}))
	return &Submitted{WorkflowID: workflowID, JobID: started.JobID}, nil
}

// Extract creates and starts a workflow in one step. In ModeSubmit it returns
// as soon as the workflow exists; otherwise it waits for a terminal run state
// and fetches the first page of data.
func (s *Service) Extract(ctx context.Context, opts Options, mode Mode) (*Result, error) {
	id, err := s.create(ctx, opts, true)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.New(events.TypeExtractionStarted, id,
		events.ExtractionStarted{WorkflowID: id, Name: opts.Name, URLs: opts.URLs}))
	if mode == ModeSubmit {
		return &Result{WorkflowID: id, Data: []map[string]any{}}, nil
	}
	status, err := s.workflows.WaitForCompletion(ctx, id, pollingOrDefault(opts.Polling))
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, id, "", status)
}

func (s *Service) create(ctx context.Context, opts Options, autoStart bool) (string, error) {
	if len(opts.URLs) == 0 {
		return "", sdkerrors.New(sdkerrors.CodeValidation, "at least one url is required")
	}
	if opts.Notifications != nil && s.notifications == nil {
		return "", sdkerrors.New(sdkerrors.CodeConfig, "notifications are not configured")
	}
	input := workflow.CreateInput{
		URLs:           opts.URLs,
		Name:           opts.Name,
		Description:    opts.Description,
		SchemaID:       opts.Entity.SchemaID,
		NavigationMode: opts.NavigationMode,
		BypassPreview:  opts.BypassPreview,
		Tags:           opts.Tags,
		Interval:       opts.Interval,
		Schedules:      opts.Schedules,
		Monitoring:     opts.Monitoring,
		Location:       opts.Location,
		AutoStart:      &autoStart,
		UserPrompt:     opts.UserPrompt,
	}
	if input.Name == "" {
		input.Name = DefaultName
	}
	if input.NavigationMode == "" {
		input.NavigationMode = workflow.NavigationSinglePage
	}
	if opts.Entity.SchemaID == "" {
		entity, err := s.entities.Resolve(ctx, opts.Entity, ResolveInput{
			Link:           opts.URLs[0],
			Location:       opts.Location,
			NavigationMode: input.NavigationMode,
		})
		if err != nil {
			return "", err
		}
		input.Entity = entity.Entity
		input.Fields = entity.Fields
	}
	id, err := s.workflows.Create(ctx, input)
	if err != nil {
		return "", err
	}
	log := logger.FromContext(ctx).With("workflow_id", id)
	log.Info("workflow created", "name", input.Name, "auto_start", autoStart)
	if opts.Notifications != nil {
		n := *opts.Notifications
		n.WorkflowID = id
		settings, err := s.notifications.Setup(ctx, n)
		if err != nil {
			return "", fmt.Errorf("setup notifications for workflow %s: %w", id, err)
		}
		log.Debug("notifications configured", "settings", len(settings))
	}
	return id, nil
}

// finish fetches data after a successful terminal state and reports an
// unexpected status otherwise.
func (s *Service) finish(ctx context.Context, workflowID, jobID string, status workflow.Status) (*Result, error) {
	if !successRunStates.Contains(status.RunState) {
		s.publisher.Publish(ctx, events.New(events.TypeExtractionCompleted, workflowID, events.ExtractionCompleted{
			WorkflowID: workflowID,
			FinalState: status.RunState,
			Error:      "unexpected workflow status",
		}))
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "unexpected workflow status: "+status.RunState).
			WithDetails(map[string]any{"workflowId": workflowID, "runState": status.RunState, "state": status.State})
	}
	page, err := s.data.FetchData(ctx, FetchDataOptions{WorkflowID: workflowID, RunID: jobID})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.New(events.TypeDataAvailable, workflowID, events.DataAvailable{
		WorkflowID:  workflowID,
		RecordCount: len(page.Data),
		IsPartial:   page.Pagination.TotalPages > 1,
		TotalCount:  page.Pagination.TotalCount,
	}))
	s.publisher.Publish(ctx, events.New(events.TypeExtractionCompleted, workflowID, events.ExtractionCompleted{
		WorkflowID:  workflowID,
		Success:     true,
		FinalState:  status.RunState,
		RecordCount: len(page.Data),
	}))
	return &Result{
		WorkflowID: workflowID,
		JobID:      jobID,
		Status:     status,
		Data:       page.Data,
		Pagination: &page.Pagination,
	}, nil
}

func pollingOrDefault(opts poll.Options) poll.Options {
	if opts.Interval <= 0 && opts.MaxWait <= 0 {
		return DefaultPolling
	}
	return opts
}
