// Package notification configures where workflow events are delivered.
package notification

import "time"

// ChannelType identifies a delivery mechanism.
type ChannelType string

const (
	ChannelEmail     ChannelType = "EMAIL"
	ChannelSlack     ChannelType = "SLACK"
	ChannelWebhook   ChannelType = "WEBHOOK"
	ChannelWebSocket ChannelType = "WEBSOCKET"
)

// DefaultChannelName names channels created without an explicit name.
const DefaultChannelName = "default"

// EventType is a platform event a setting subscribes to.
type EventType string

const (
	EventWorkflowStarted        EventType = "workflow_started"
	EventWorkflowFinished       EventType = "workflow_finished"
	EventWorkflowFailed         EventType = "workflow_failed"
	EventWorkflowSampleFinished EventType = "workflow_sample_finished"
	EventWorkflowDataChange     EventType = "workflow_data_change"
	EventSystemMaintenance      EventType = "system_maintenance"
	EventServiceDegradation     EventType = "service_degradation"
	EventCreditsLow             EventType = "credits_low"
	EventFreeTrialEnding        EventType = "free_trial_ending"
)

// AllEventTypes lists every event type a setting may subscribe to.
var AllEventTypes = []EventType{
	EventWorkflowStarted,
	EventWorkflowFinished,
	EventWorkflowFailed,
	EventWorkflowSampleFinished,
	EventWorkflowDataChange,
	EventSystemMaintenance,
	EventServiceDegradation,
	EventCreditsLow,
	EventFreeTrialEnding,
}

// ChannelConfig holds type-specific channel settings; unused fields stay empty.
type ChannelConfig struct {
	Recipients       []string          `json:"recipients,omitempty"`
	From             string            `json:"from,omitempty"`
	WebhookURL       string            `json:"webhookUrl,omitempty"`
	HTTPMethod       string            `json:"httpMethod,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	SlackChannelID   string            `json:"slackChannelId,omitempty"`
	SlackChannelName string            `json:"slackChannelName,omitempty"`
}

// Channel is a stored notification channel.
type Channel struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	ChannelType ChannelType   `json:"channelType"`
	Config      ChannelConfig `json:"config"`
	CreatedAt   time.Time     `json:"createdAt,omitzero"`
}

// ChannelRequest creates a channel.
type ChannelRequest struct {
	Name        string        `json:"name"`
	ChannelType ChannelType   `json:"channelType"`
	Config      ChannelConfig `json:"config"`
}

// ChannelFilters narrows a channel listing.
type ChannelFilters struct {
	WorkflowID string
}

// Settings binds an event type to channels.
type Settings struct {
	ID                 string         `json:"id"`
	WorkflowID         string         `json:"workflowId,omitempty"`
	EventType          EventType      `json:"eventType"`
	Enabled            bool           `json:"enabled"`
	ChannelIDs         []string       `json:"channelIds,omitempty"`
	EventConfiguration map[string]any `json:"eventConfiguration,omitempty"`
}

// SettingsRequest creates or updates a settings record.
type SettingsRequest struct {
	WorkflowID         string         `json:"workflowId,omitempty"`
	EventType          EventType      `json:"eventType"`
	Enabled            bool           `json:"enabled"`
	ChannelIDs         []string       `json:"channelIds"`
	EventConfiguration map[string]any `json:"eventConfiguration"`
}

// SettingsFilters narrows a settings listing.
type SettingsFilters struct {
	WorkflowID string
	EventType  EventType
}

// ChannelSpec selects the channel used for one channel type.
// ChannelID reuses an existing channel, Config creates (or reuses by name) a
// configured channel, and neither uses the type's default channel.
type ChannelSpec struct {
	ChannelID string
	Name      string
	Config    *ChannelConfig
}

// Options configures notifications for a workflow, or the workspace when WorkflowID is empty.
type Options struct {
	WorkflowID string
	// Events defaults to every event type.
	Events   []EventType
	Channels map[ChannelType]ChannelSpec
}
