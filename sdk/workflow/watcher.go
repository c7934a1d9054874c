package workflow

import (
	"context"
	"errors"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/monitoring"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

// PollingConfig bounds a wait: Interval between fetches and MaxWait overall.
type PollingConfig = poll.Options

// StatusFetcher retrieves the current status of a workflow in one round trip.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, workflowID string) (Status, error)
}

// StatusFetcherFunc adapts a function to StatusFetcher.
type StatusFetcherFunc func(ctx context.Context, workflowID string) (Status, error)

func (f StatusFetcherFunc) FetchStatus(ctx context.Context, workflowID string) (Status, error) {
	return f(ctx, workflowID)
}

// Watcher waits for workflows to reach a terminal run state and publishes an
// extraction:status_changed event whenever the observed status changes.
// A Watcher holds no per-wait state and may be shared.
type Watcher struct {
	fetcher   StatusFetcher
	publisher events.Publisher
	terminal  TerminalSet
	metrics   *monitoring.SDKMetrics
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithPublisher sets the destination of status change events.
func WithPublisher(p events.Publisher) WatcherOption {
	return func(w *Watcher) {
		if p != nil {
			w.publisher = p
		}
	}
}

// WithTerminalStates replaces the default terminal run states.
func WithTerminalStates(set TerminalSet) WatcherOption {
	return func(w *Watcher) {
		if set.Len() > 0 {
			w.terminal = set
		}
	}
}

// WithMetrics records polls and wait outcomes.
func WithMetrics(m *monitoring.SDKMetrics) WatcherOption {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// NewWatcher creates a watcher reading statuses from fetcher.
func NewWatcher(fetcher StatusFetcher, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		fetcher:   fetcher,
		publisher: events.Discard,
		terminal:  DefaultTerminalSet(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// TerminalStates returns the set the watcher stops on.
func (w *Watcher) TerminalStates() TerminalSet {
	return w.terminal
}

// WaitForCompletion polls workflowID until its run state is terminal and returns that status.
//
// Fetch errors are returned unchanged without retry. When cfg.MaxWait elapses
// first the error is a *sdkerrors.TimeoutError. Canceling ctx stops the wait
// with an error wrapping ctx.Err().
func (w *Watcher) WaitForCompletion(ctx context.Context, workflowID string, cfg PollingConfig) (Status, error) {
	if err := validate.NonEmpty(ctx, "workflow id", workflowID); err != nil {
		return Status{}, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid workflow id", err)
	}
	if err := cfg.Validate(); err != nil {
		return Status{}, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid polling config", err)
	}
	log := logger.FromContext(ctx).With("workflow_id", workflowID)
	var last *Status
	fetch := func(ctx context.Context) (Status, error) {
		current, err := w.fetcher.FetchStatus(ctx, workflowID)
		if err != nil {
			return Status{}, err
		}
		w.metrics.RecordPoll(ctx, "workflow")
		log.Debug("polled workflow status", "state", current.State, "run_state", current.RunState)
		if last == nil || *last != current {
			w.publishChange(ctx, workflowID, last, current)
			last = &current
		}
		return current, nil
	}
	res, err := poll.Until(ctx, cfg, fetch, func(s Status) bool {
		return w.terminal.Contains(s.RunState)
	})
	if err != nil {
		if errors.Is(err, poll.ErrBudgetExhausted) {
			w.metrics.RecordWait(ctx, "workflow", "timeout")
			log.Debug("workflow wait timed out", "max_wait", cfg.MaxWait, "attempts", res.Attempts)
			return res.Value, &sdkerrors.TimeoutError{WorkflowID: workflowID, MaxWaitTime: cfg.MaxWait}
		}
		w.metrics.RecordWait(ctx, "workflow", waitOutcome(err))
		return Status{}, err
	}
	w.metrics.RecordWait(ctx, "workflow", "completed")
	log.Debug("workflow reached terminal state", "run_state", res.Value.RunState, "attempts", res.Attempts)
	return res.Value, nil
}

func (w *Watcher) publishChange(ctx context.Context, workflowID string, previous *Status, current Status) {
	payload := events.StatusChanged{
		WorkflowID:      workflowID,
		CurrentState:    current.State,
		CurrentRunState: current.RunState,
	}
	if previous != nil {
		payload.PreviousState = previous.State
		payload.PreviousRunState = previous.RunState
	}
	w.metrics.RecordStatusChange(ctx, current.RunState)
	w.publisher.Publish(ctx, events.New(events.TypeStatusChanged, workflowID, payload))
}

func waitOutcome(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
