package notification

import (
	"context"
	"fmt"
	"slices"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"golang.org/x/sync/errgroup"
)

// Setup resolves channels and creates one settings record per event.
type Setup struct {
	channels *Channels
	settings *SettingsService
}

// NewSetup creates a setup service over the channel and settings services.
func NewSetup(channels *Channels, settings *SettingsService) *Setup {
	return &Setup{channels: channels, settings: settings}
}

// Setup configures notifications described by opts and returns the created settings
// in the order of opts.Events.
func (s *Setup) Setup(ctx context.Context, opts Options) ([]Settings, error) {
	log := logger.FromContext(ctx).With("workflow_id", opts.WorkflowID)
	events := opts.Events
	if len(events) == 0 {
		events = AllEventTypes
	}
	for _, e := range events {
		if err := validateEventType(ctx, e); err != nil {
			return nil, err
		}
	}
	channelIDs, err := s.resolveChannels(ctx, opts)
	if err != nil {
		return nil, err
	}
	log.Debug("creating notification settings", "events", len(events), "channels", len(channelIDs))
	out := make([]Settings, len(events))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range events {
		g.Go(func() error {
			created, err := s.settings.Create(gctx, SettingsRequest{
				WorkflowID:         opts.WorkflowID,
				EventType:          e,
				Enabled:            true,
				ChannelIDs:         channelIDs,
				EventConfiguration: map[string]any{},
			})
			if err != nil {
				return fmt.Errorf("create settings for %s: %w", e, err)
			}
			out[i] = *created
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("notifications configured", "settings", len(out))
	return out, nil
}

func (s *Setup) resolveChannels(ctx context.Context, opts Options) ([]string, error) {
	if len(opts.Channels) == 0 {
		return []string{}, nil
	}
	existing, err := s.channels.ListAll(ctx, opts.WorkflowID)
	if err != nil {
		return nil, err
	}
	types := make([]ChannelType, 0, len(opts.Channels))
	for t := range opts.Channels {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		want := opts.Channels[t]
		if want.ChannelID == "" && want.Config == nil && t != ChannelEmail && t != ChannelWebSocket {
			return nil, sdkerrors.New(sdkerrors.CodeValidation,
				fmt.Sprintf("channel type %s requires a channel id or config", t))
		}
	}

	ids := make([]string, len(types))
	var missing []string
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		want := opts.Channels[t]
		switch {
		case want.ChannelID != "":
			if !slices.ContainsFunc(existing, func(c Channel) bool { return c.ID == want.ChannelID }) {
				missing = append(missing, want.ChannelID)
				continue
			}
			ids[i] = want.ChannelID
		case want.Config != nil:
			name := want.Name
			if name == "" {
				name = DefaultChannelName
			}
			if ch, ok := findChannel(existing, t, name); ok {
				ids[i] = ch.ID
				continue
			}
			g.Go(func() error {
				ch, err := s.channels.Create(gctx, t, ChannelRequest{Name: name, Config: *want.Config})
				if err != nil {
					return err
				}
				ids[i] = ch.ID
				return nil
			})
		default:
			if ch, ok := findDefaultChannel(existing, t); ok {
				ids[i] = ch.ID
				continue
			}
			g.Go(func() error {
				ch, err := s.channels.Create(gctx, t, ChannelRequest{Name: DefaultChannelName})
				if err != nil {
					return err
				}
				ids[i] = ch.ID
				return nil
			})
		}
	}
	if len(missing) > 0 {
		_ = g.Wait()
		return nil, sdkerrors.New(sdkerrors.CodeNotFound, "channels not found").
			WithDetails(map[string]any{"channelIds": missing, "workflowId": opts.WorkflowID})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.DeleteFunc(ids, func(id string) bool { return id == "" }), nil
}

func findChannel(channels []Channel, t ChannelType, name string) (Channel, bool) {
	for _, c := range channels {
		if c.ChannelType == t && c.Name == name {
			return c, true
		}
	}
	return Channel{}, false
}

// findDefaultChannel reuses any websocket channel; other types match the default name.
func findDefaultChannel(channels []Channel, t ChannelType) (Channel, bool) {
	if t == ChannelWebSocket {
		for _, c := range channels {
			if c.ChannelType == t {
				return c, true
			}
		}
		return Channel{}, false
	}
	return findChannel(channels, t, DefaultChannelName)
}
