package validation

import "time"

// Rule is a data validation rule attached to a workflow.
type Rule struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	RuleType       string         `json:"ruleType"`
	Status         string         `json:"status,omitempty"`
	WorkflowID     string         `json:"workflowId,omitempty"`
	TargetColumns  []string       `json:"targetColumns,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	DisabledReason string         `json:"disabledReason,omitempty"`
	CreatedAt      time.Time      `json:"createdAt,omitzero"`
	UpdatedAt      time.Time      `json:"updatedAt,omitzero"`
}

// ListRulesOptions filters a rule listing.
type ListRulesOptions struct {
	WorkflowID string
	Status     string
	Page       int
	PageSize   int
}

// CreateRuleInput creates a rule.
type CreateRuleInput struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	RuleType      string         `json:"ruleType"`
	WorkflowID    string         `json:"workflowId"`
	TargetColumns []string       `json:"targetColumns,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// UpdateRuleInput changes a rule; empty fields are left unchanged.
type UpdateRuleInput struct {
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	RuleType      string         `json:"ruleType,omitempty"`
	TargetColumns []string       `json:"targetColumns,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	Status        string         `json:"status,omitempty"`
}

// GenerateRuleInput asks the platform to write one rule from a prompt.
type GenerateRuleInput struct {
	WorkflowID      string   `json:"workflowId"`
	SelectedColumns []string `json:"selectedColumns,omitempty"`
	UserPrompt      string   `json:"userPrompt"`
}

// GenerateRulesInput asks the platform to derive rules from the workflow schema.
type GenerateRulesInput struct {
	WorkflowID string `json:"workflowId"`
}

// BulkInput selects rules of a workflow.
type BulkInput struct {
	WorkflowID string   `json:"workflowId"`
	RuleIDs    []string `json:"ruleIds"`
}

// DeleteAllInput removes every rule of a workflow.
type DeleteAllInput struct {
	WorkflowID string `json:"workflowId"`
	Reason     string `json:"reason,omitempty"`
}

// BulkResult reports the outcome of a bulk operation.
type BulkResult struct {
	ProcessedCount int      `json:"processedCount"`
	SkippedCount   int      `json:"skippedCount,omitempty"`
	RuleIDs        []string `json:"ruleIds,omitempty"`
}

// DeleteAllResult reports how many rules were removed.
type DeleteAllResult struct {
	DeletedCount int `json:"deletedCount"`
}

// Report is the result of one validation run.
type Report struct {
	ID                   string         `json:"id"`
	WorkflowID           string         `json:"workflowId"`
	JobID                string         `json:"jobId"`
	Status               string         `json:"status,omitempty"`
	CreatedAt            time.Time      `json:"createdAt,omitzero"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
	Error                string         `json:"error,omitempty"`
	AnomaliesCountTotal  int            `json:"anomaliesCountTotal"`
	AnomaliesCountByRule map[string]int `json:"anomaliesCountByRule,omitempty"`
}

// Completed reports whether the validation finished.
func (r Report) Completed() bool {
	return r.CompletedAt != nil
}

// ListValidationsOptions selects validations of one job.
type ListValidationsOptions struct {
	WorkflowID    string
	JobID         string
	Page          int
	PageSize      int
	IncludeDryRun bool
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// ValidationList is a page of reports.
type ValidationList struct {
	Data       []Report   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ScheduleResult identifies a scheduled validation.
type ScheduleResult struct {
	ValidationID string `json:"validationId"`
	Message      string `json:"message,omitempty"`
}

// ToggleResult reports whether validation is now enabled for a workflow.
type ToggleResult struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message,omitempty"`
}

// RuleAnomalies groups the anomalies found by one rule.
type RuleAnomalies struct {
	RuleName   string           `json:"ruleName"`
	Anomalies  []map[string]any `json:"anomalies"`
	Pagination Pagination       `json:"pagination"`
}

// AnomaliesByRule lists anomalies of a validation grouped by rule.
type AnomaliesByRule struct {
	ValidationID    string          `json:"validationId"`
	AnomaliesByRule []RuleAnomalies `json:"anomaliesByRule"`
}
