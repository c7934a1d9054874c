package extraction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/notification"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/schema"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
)

var intervals = []string{
	workflow.IntervalOnlyOnce,
	workflow.IntervalEvery10Min,
	workflow.IntervalHalfHourly,
	workflow.IntervalHourly,
	workflow.IntervalThreeHourly,
	workflow.IntervalSixHourly,
	workflow.IntervalTwelveHourly,
	workflow.IntervalDaily,
	workflow.IntervalWeekly,
	workflow.IntervalMonthly,
	workflow.IntervalRealTime,
	workflow.IntervalCustom,
}

// Builder describes an extraction step by step. Every method returns a new
// Builder; Build validates the result once.
type Builder struct {
	opts        Options
	schemaSet   bool
	schemaIDSet bool
}

// New starts an extraction of urls with default name, navigation and location.
func New(urls ...string) Builder {
	return Builder{opts: Options{
		URLs:           slices.Clone(urls),
		Name:           DefaultName,
		NavigationMode: workflow.NavigationSinglePage,
		Location:       &workflow.Location{Type: "auto"},
		Polling:        DefaultPolling,
	}}
}

func (b Builder) clone() Builder {
	next := b
	next.opts.URLs = slices.Clone(b.opts.URLs)
	next.opts.Schedules = slices.Clone(b.opts.Schedules)
	next.opts.Tags = slices.Clone(b.opts.Tags)
	next.opts.Entity.Fields = slices.Clone(b.opts.Entity.Fields)
	return next
}

func (b Builder) WithName(name string) Builder {
	next := b.clone()
	next.opts.Name = strings.TrimSpace(name)
	return next
}

func (b Builder) WithDescription(description string) Builder {
	next := b.clone()
	next.opts.Description = description
	return next
}

// WithNavigationMode sets how the crawler moves through the site.
func (b Builder) WithNavigationMode(mode string) Builder {
	next := b.clone()
	next.opts.NavigationMode = mode
	return next
}

// WithSchema extracts the entity described by def.
func (b Builder) WithSchema(def schema.Definition) Builder {
	next := b.clone()
	next.schemaSet = true
	next.opts.Entity.Name = def.EntityName
	next.opts.Entity.Fields = slices.Clone(def.Fields)
	return next
}

// WithSchemaID extracts using a stored schema.
func (b Builder) WithSchemaID(id string) Builder {
	next := b.clone()
	next.schemaIDSet = true
	next.opts.Entity.SchemaID = strings.TrimSpace(id)
	return next
}

// WithNotifications configures notifications once the workflow exists.
func (b Builder) WithNotifications(opts notification.Options) Builder {
	next := b.clone()
	next.opts.Notifications = &opts
	return next
}

func (b Builder) WithMonitoring(m workflow.Monitoring) Builder {
	next := b.clone()
	next.opts.Monitoring = &m
	return next
}

// WithInterval sets a predefined update interval.
func (b Builder) WithInterval(interval string) Builder {
	next := b.clone()
	next.opts.Interval = interval
	next.opts.Schedules = nil
	return next
}

// WithSchedules runs the workflow on cron schedules and sets the interval to CUSTOM.
func (b Builder) WithSchedules(exprs ...string) Builder {
	next := b.clone()
	next.opts.Interval = workflow.IntervalCustom
	next.opts.Schedules = slices.Clone(exprs)
	return next
}

func (b Builder) WithLocation(loc workflow.Location) Builder {
	next := b.clone()
	next.opts.Location = &loc
	return next
}

// BypassPreview sets whether the preview step is skipped.
func (b Builder) BypassPreview(enabled bool) Builder {
	next := b.clone()
	next.opts.BypassPreview = &enabled
	return next
}

func (b Builder) WithUserPrompt(prompt string) Builder {
	next := b.clone()
	next.opts.UserPrompt = prompt
	return next
}

func (b Builder) WithTags(tags ...string) Builder {
	next := b.clone()
	next.opts.Tags = append(next.opts.Tags, tags...)
	return next
}

// WithPolling bounds the wait used by Service.Extract.
func (b Builder) WithPolling(opts poll.Options) Builder {
	next := b.clone()
	next.opts.Polling = opts
	return next
}

// Build validates the extraction and returns its options.
func (b Builder) Build(ctx context.Context) (Options, error) {
	if ctx == nil {
		return Options{}, fmt.Errorf("context is required")
	}
	logger.FromContext(ctx).Debug("building extraction", "name", b.opts.Name, "urls", len(b.opts.URLs))
	collected := make([]error, 0)
	if len(b.opts.URLs) == 0 {
		collected = append(collected, errors.New("at least one url is required"))
	}
	for _, u := range b.opts.URLs {
		if err := validate.URL(ctx, u); err != nil {
			collected = append(collected, err)
		}
	}
	if err := validate.NonEmpty(ctx, "name", b.opts.Name); err != nil {
		collected = append(collected, err)
	}
	if err := validate.OneOf(ctx, "navigation mode", b.opts.NavigationMode, workflow.NavigationModes...); err != nil {
		collected = append(collected, err)
	}
	if b.schemaSet && b.schemaIDSet {
		collected = append(collected, errors.New("schema and schema id are mutually exclusive"))
	}
	if b.schemaIDSet && b.opts.Entity.SchemaID == "" {
		collected = append(collected, errors.New("schema id is required"))
	}
	if b.schemaSet && (b.opts.Entity.Name == "" || len(b.opts.Entity.Fields) == 0) {
		collected = append(collected, errors.New("schema requires an entity name and fields"))
	}
	collected = append(collected, b.validateSchedule(ctx)...)
	if err := b.opts.Polling.Validate(); err != nil {
		collected = append(collected, err)
	}
	if len(collected) > 0 {
		return Options{}, &sdkerrors.BuildError{Errors: collected}
	}
	return b.clone().opts, nil
}

func (b Builder) validateSchedule(ctx context.Context) []error {
	errs := make([]error, 0)
	if b.opts.Interval != "" {
		if err := validate.OneOf(ctx, "interval", b.opts.Interval, intervals...); err != nil {
			errs = append(errs, err)
		}
	}
	if b.opts.Interval == workflow.IntervalCustom && len(b.opts.Schedules) == 0 {
		errs = append(errs, errors.New("custom interval requires at least one schedule"))
	}
	for _, expr := range b.opts.Schedules {
		if err := validate.Cron(ctx, expr); err != nil {
			errs = append(errs, fmt.Errorf("schedule %q: %w", expr, err))
		}
	}
	return errs
}
