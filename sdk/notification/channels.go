package notification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"dario.cat/mergo"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/user"
	"golang.org/x/sync/errgroup"
)

const channelsPath = "/v5/notifications/channels"

// UserLookup resolves the account used for default email recipients.
type UserLookup interface {
	Current(ctx context.Context) (*user.User, error)
}

// Channels manages notification channels.
type Channels struct {
	client *transport.Client
	users  UserLookup
}

// NewChannels creates a channel service.
func NewChannels(client *transport.Client, users UserLookup) *Channels {
	return &Channels{client: client, users: users}
}

type channelsEnvelope struct {
	Data *struct {
		Channels []Channel `json:"channels"`
	} `json:"data"`
}

type channelEnvelope struct {
	Data *struct {
		Channel *Channel `json:"channel"`
	} `json:"data"`
}

// List returns channels matching filters.
func (c *Channels) List(ctx context.Context, filters ChannelFilters) ([]Channel, error) {
	resp, err := transport.Do[channelsEnvelope](ctx, c.client, http.MethodGet, channelsPath,
		transport.WithParam("workflowId", filters.WorkflowID))
	if err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Channels == nil {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "failed to list channels")
	}
	return resp.Data.Channels, nil
}

// ListAll returns workflow channels followed by workspace channels not already listed.
// Without a workflow id only workspace channels are returned.
func (c *Channels) ListAll(ctx context.Context, workflowID string) ([]Channel, error) {
	if workflowID == "" {
		return c.List(ctx, ChannelFilters{})
	}
	var workflowChannels, workspaceChannels []Channel
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		workflowChannels, err = c.List(gctx, ChannelFilters{WorkflowID: workflowID})
		return err
	})
	g.Go(func() error {
		var err error
		workspaceChannels, err = c.List(gctx, ChannelFilters{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(workflowChannels))
	all := make([]Channel, 0, len(workflowChannels)+len(workspaceChannels))
	for _, ch := range workflowChannels {
		seen[ch.ID] = struct{}{}
		all = append(all, ch)
	}
	for _, ch := range workspaceChannels {
		if _, dup := seen[ch.ID]; dup {
			continue
		}
		all = append(all, ch)
	}
	return all, nil
}

// Create creates a channel of the given type. Missing values are filled from
// defaults; email channels default their recipients to the current user.
func (c *Channels) Create(ctx context.Context, channelType ChannelType, req ChannelRequest) (*Channel, error) {
	payload, err := c.buildRequest(ctx, channelType, req)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("creating notification channel", "type", channelType, "name", payload.Name)
	resp, err := transport.Do[channelEnvelope](ctx, c.client, http.MethodPost, channelsPath, transport.WithBody(payload))
	if err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.Channel == nil {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "failed to create channel")
	}
	return resp.Data.Channel, nil
}

// Delete removes a channel.
func (c *Channels) Delete(ctx context.Context, id string) error {
	if err := validate.NonEmpty(ctx, "channel id", id); err != nil {
		return sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid channel id", err)
	}
	return c.client.Exec(ctx, http.MethodDelete, channelsPath+"/"+url.PathEscape(id))
}

func (c *Channels) buildRequest(ctx context.Context, channelType ChannelType, req ChannelRequest) (ChannelRequest, error) {
	req.ChannelType = channelType
	if err := mergo.Merge(&req, ChannelRequest{Name: DefaultChannelName}); err != nil {
		return req, fmt.Errorf("merge channel defaults: %w", err)
	}
	switch channelType {
	case ChannelEmail:
		cfg, err := c.emailConfig(ctx, req.Config)
		if err != nil {
			return req, err
		}
		req.Config = cfg
	case ChannelWebhook:
		if err := mergo.Merge(&req.Config, ChannelConfig{HTTPMethod: http.MethodPost}); err != nil {
			return req, fmt.Errorf("merge webhook defaults: %w", err)
		}
	case ChannelSlack, ChannelWebSocket:
	default:
		return req, sdkerrors.New(sdkerrors.CodeValidation, fmt.Sprintf("unsupported channel type %q", channelType))
	}
	return req, nil
}

func (c *Channels) emailConfig(ctx context.Context, cfg ChannelConfig) (ChannelConfig, error) {
	if len(cfg.Recipients) == 0 {
		if c.users == nil {
			return cfg, sdkerrors.New(sdkerrors.CodeValidation, "recipients are required for email channel")
		}
		u, err := c.users.Current(ctx)
		if err != nil {
			return cfg, err
		}
		cfg.Recipients = []string{u.Email}
	}
	issues := make([]string, 0)
	for _, r := range cfg.Recipients {
		if err := validate.Email(ctx, r); err != nil {
			issues = append(issues, err.Error())
		}
	}
	if cfg.From != "" {
		if err := validate.Email(ctx, cfg.From); err != nil {
			issues = append(issues, err.Error())
		} else if !strings.HasSuffix(cfg.From, "@kadoa.com") {
			issues = append(issues, "from email address must end with @kadoa.com")
		}
	}
	if len(issues) > 0 {
		return cfg, sdkerrors.New(sdkerrors.CodeValidation, "invalid email channel config").
			WithDetails(map[string]any{"issues": issues})
	}
	return cfg, nil
}
