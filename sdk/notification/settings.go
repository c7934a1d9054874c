package notification

import (
	"context"
	"net/http"
	"net/url"
	"slices"

	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

const settingsPath = "/v5/notifications/settings"

// SettingsService manages which events are delivered to which channels.
type SettingsService struct {
	client *transport.Client
}

// NewSettings creates a settings service.
func NewSettings(client *transport.Client) *SettingsService {
	return &SettingsService{client: client}
}

type settingsListEnvelope struct {
	Data *struct {
		Settings []Settings `json:"settings"`
	} `json:"data"`
}

type settingsEnvelope struct {
	Data *struct {
		Settings *Settings `json:"settings"`
	} `json:"data"`
}

// Create stores a settings record.
func (s *SettingsService) Create(ctx context.Context, req SettingsRequest) (*Settings, error) {
	if err := validateEventType(ctx, req.EventType); err != nil {
		return nil, err
	}
	if req.ChannelIDs == nil {
		req.ChannelIDs = []string{}
	}
	if req.EventConfiguration == nil {
		req.EventConfiguration = map[string]any{}
	}
	resp, err := transport.Do[settingsEnvelope](ctx, s.client, http.MethodPost, settingsPath, transport.WithBody(req))
	if err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Settings == nil {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "failed to create notification settings")
	}
	return resp.Data.Settings, nil
}

// List returns settings matching filters.
func (s *SettingsService) List(ctx context.Context, filters SettingsFilters) ([]Settings, error) {
	resp, err := transport.Do[settingsListEnvelope](ctx, s.client, http.MethodGet, settingsPath,
		transport.WithParam("workflowId", filters.WorkflowID),
		transport.WithParam("eventType", string(filters.EventType)))
	if err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Settings == nil {
		return []Settings{}, nil
	}
	return resp.Data.Settings, nil
}

// Update replaces a settings record.
func (s *SettingsService) Update(ctx context.Context, id string, req SettingsRequest) (*Settings, error) {
	if err := validate.NonEmpty(ctx, "settings id", id); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid settings id", err)
	}
	if err := validateEventType(ctx, req.EventType); err != nil {
		return nil, err
	}
	resp, err := transport.Do[settingsEnvelope](ctx, s.client, http.MethodPut,
		settingsPath+"/"+url.PathEscape(id), transport.WithBody(req))
	if err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Settings == nil {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "failed to update notification settings")
	}
	return resp.Data.Settings, nil
}

// Delete removes a settings record.
func (s *SettingsService) Delete(ctx context.Context, id string) error {
	if err := validate.NonEmpty(ctx, "settings id", id); err != nil {
		return sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid settings id", err)
	}
	return s.client.Exec(ctx, http.MethodDelete, settingsPath+"/"+url.PathEscape(id))
}

// ListAllEvents returns every event type a setting can subscribe to.
func (s *SettingsService) ListAllEvents() []EventType {
	return slices.Clone(AllEventTypes)
}

func validateEventType(ctx context.Context, t EventType) error {
	if err := validate.OneOf(ctx, "event type", t, AllEventTypes...); err != nil {
		return sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid event type", err)
	}
	return nil
}
