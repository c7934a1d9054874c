package extraction

import (
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/notification"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/schema"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
)

const (
	// DefaultName names extractions created without a name.
	DefaultName = "Untitled Workflow"
	// DefaultPageLimit is the page size used when fetching data.
	DefaultPageLimit = 100
)

// DefaultPolling bounds waits started without explicit polling options.
var DefaultPolling = poll.Options{Interval: 5 * time.Second, MaxWait: 5 * time.Minute}

// successRunStates are the terminal run states after which data is fetched.
var successRunStates = workflow.NewTerminalSet("FINISHED", "SUCCESS")

// Mode selects whether Extract waits for the result.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeSubmit Mode = "submit"
)

// EntityConfig chooses how the extracted entity is defined. The zero value
// asks the platform to detect the entity from the first URL.
type EntityConfig struct {
	SchemaID string
	Name     string
	Fields   []schema.Field
}

// AIDetection reports whether the entity is detected by the platform.
func (e EntityConfig) AIDetection() bool {
	return e.SchemaID == "" && e.Name == "" && len(e.Fields) == 0
}

// ResolvedEntity is an entity name and its fields.
type ResolvedEntity struct {
	Entity string         `json:"entity"`
	Fields []schema.Field `json:"fields"`
}

// ResolveInput is the page used for entity detection.
type ResolveInput struct {
	Link           string
	Location       *workflow.Location
	NavigationMode string
}

// Options is a validated extraction produced by Builder.Build.
type Options struct {
	URLs           []string
	Name           string
	Description    string
	NavigationMode string
	Entity         EntityConfig
	Notifications  *notification.Options
	Monitoring     *workflow.Monitoring
	Interval       string
	Schedules      []string
	Location       *workflow.Location
	// BypassPreview nil leaves the platform default (true).
	BypassPreview *bool
	UserPrompt    string
	Tags          []string
	Polling       poll.Options
}

// CreatedExtraction is a workflow created but not started.
type CreatedExtraction struct {
	WorkflowID string
	Options    Options
}

// RunOptions starts a run of an existing workflow.
type RunOptions struct {
	Variables map[string]any
	Limit     int
	// Polling defaults to DefaultPolling.
	Polling poll.Options
}

// Submitted identifies a started job that was not waited for.
type Submitted struct {
	WorkflowID string `json:"workflowId"`
	JobID      string `json:"jobId"`
}

// Result is the outcome of a waited extraction.
type Result struct {
	WorkflowID string           `json:"workflowId"`
	JobID      string           `json:"jobId,omitempty"`
	Status     workflow.Status  `json:"status"`
	Data       []map[string]any `json:"data"`
	Pagination *Pagination      `json:"pagination,omitempty"`
}

// FetchDataOptions selects a page of workflow data.
type FetchDataOptions struct {
	WorkflowID       string
	RunID            string
	SortBy           string
	Order            string
	Filters          string
	Page             int
	Limit            int
	IncludeAnomalies bool
}

// Pagination describes the position of a page.
type Pagination struct {
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Limit      int `json:"limit"`
}

// DataPage is one page of extracted records.
type DataPage struct {
	WorkflowID string           `json:"workflowId"`
	RunID      string           `json:"runId,omitempty"`
	ExecutedAt string           `json:"executedAt,omitempty"`
	Data       []map[string]any `json:"data"`
	Pagination Pagination       `json:"pagination"`
}
