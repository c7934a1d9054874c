package workflow

import (
	"net/url"
	"strconv"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/schema"
)

// Navigation modes accepted by the platform.
const (
	NavigationSinglePage    = "single-page"
	NavigationPaginatedPage = "paginated-page"
	NavigationPageAndDetail = "page-and-detail"
	NavigationAgentic       = "agentic-navigation"
	NavigationAllPages      = "all-pages"
)

// NavigationModes lists every supported navigation mode.
var NavigationModes = []string{
	NavigationSinglePage,
	NavigationPaginatedPage,
	NavigationPageAndDetail,
	NavigationAgentic,
	NavigationAllPages,
}

// Update intervals accepted by the platform.
const (
	IntervalOnlyOnce     = "ONLY_ONCE"
	IntervalEvery10Min   = "EVERY_10_MINUTES"
	IntervalHalfHourly   = "HALF_HOURLY"
	IntervalHourly       = "HOURLY"
	IntervalThreeHourly  = "THREE_HOURLY"
	IntervalSixHourly    = "SIX_HOURLY"
	IntervalTwelveHourly = "TWELVE_HOURLY"
	IntervalDaily        = "DAILY"
	IntervalWeekly       = "WEEKLY"
	IntervalMonthly      = "MONTHLY"
	IntervalRealTime     = "REAL_TIME"
	IntervalCustom       = "CUSTOM"
)

// Workflow is a workflow as returned by the platform.
type Workflow struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	State          string    `json:"state"`
	RunState       *string   `json:"runState"`
	DisplayState   string    `json:"displayState,omitempty"`
	URLs           []string  `json:"urls,omitempty"`
	SchemaID       string    `json:"schemaId,omitempty"`
	Entity         string    `json:"entity,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	UpdateInterval string    `json:"updateInterval,omitempty"`
	JobID          string    `json:"jobId,omitempty"`
	TotalRecords   int       `json:"totalRecords,omitempty"`
	LastRun        time.Time `json:"lastRun,omitzero"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}

// Status returns the lifecycle snapshot of w.
func (w Workflow) Status() Status {
	s := Status{State: w.State}
	if w.RunState != nil {
		s.RunState = *w.RunState
	}
	return s
}

// Location selects where pages are fetched from.
type Location struct {
	Type    string `json:"type"`
	ISOCode string `json:"isoCode,omitempty"`
}

// MonitoringField is a field watched for changes.
type MonitoringField struct {
	FieldName  string `json:"fieldName"`
	Operator   string `json:"operator"`
	IsKeyField bool   `json:"isKeyField,omitempty"`
}

// Monitoring configures change monitoring of a workflow.
type Monitoring struct {
	Enabled    bool              `json:"enabled"`
	Fields     []MonitoringField `json:"fields,omitempty"`
	Conditions map[string]any    `json:"conditions,omitempty"`
}

// CreateInput is the body of a workflow creation request.
type CreateInput struct {
	URLs           []string       `json:"urls"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	SchemaID       string         `json:"schemaId,omitempty"`
	NavigationMode string         `json:"navigationMode"`
	Entity         string         `json:"entity,omitempty"`
	Fields         []schema.Field `json:"fields,omitempty"`
	BypassPreview  *bool          `json:"bypassPreview,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Interval       string         `json:"interval,omitempty"`
	Schedules      []string       `json:"schedules,omitempty"`
	Monitoring     *Monitoring    `json:"monitoring,omitempty"`
	Location       *Location      `json:"location,omitempty"`
	AutoStart      *bool          `json:"autoStart,omitempty"`
	UserPrompt     string         `json:"userPrompt,omitempty"`
}

// ListFilters narrows a workflow listing. Zero values are not sent.
type ListFilters struct {
	Search         string
	Skip           int
	Limit          int
	State          string
	Tags           []string
	Monitoring     *bool
	UpdateInterval string
	TemplateID     string
	IncludeDeleted bool
	Format         string
}

func (f ListFilters) query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("search", f.Search)
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	set("state", f.State)
	for _, tag := range f.Tags {
		q.Add("tags", tag)
	}
	if f.Monitoring != nil {
		q.Set("monitoring", strconv.FormatBool(*f.Monitoring))
	}
	set("updateInterval", f.UpdateInterval)
	set("templateId", f.TemplateID)
	if f.IncludeDeleted {
		q.Set("includeDeleted", "true")
	}
	set("format", f.Format)
	return q
}

// RunInput starts a workflow run.
type RunInput struct {
	Variables map[string]any `json:"variables,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// StartedJob identifies a job created by Run.
type StartedJob struct {
	JobID   string `json:"jobId"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Job is the state of a single workflow run.
type Job struct {
	WorkflowID  string    `json:"workflowId"`
	JobID       string    `json:"jobId"`
	State       string    `json:"state"`
	StartedAt   time.Time `json:"startedAt,omitzero"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
}
