package extraction

import (
	"context"
	"net/http"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/schema"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
)

const entityPath = "/v4/entity"

// SchemaGetter loads stored schemas.
type SchemaGetter interface {
	Get(ctx context.Context, id string) (*schema.Schema, error)
}

// EntityResolver turns an EntityConfig into an entity name and fields.
type EntityResolver struct {
	client    *transport.Client
	schemas   SchemaGetter
	publisher events.Publisher
}

// NewEntityResolver creates a resolver. publisher may be nil.
func NewEntityResolver(client *transport.Client, schemas SchemaGetter, publisher events.Publisher) *EntityResolver {
	if publisher == nil {
		publisher = events.Discard
	}
	return &EntityResolver{client: client, schemas: schemas, publisher: publisher}
}

type entityRequest struct {
	Link           string             `json:"link"`
	Location       *workflow.Location `json:"location,omitempty"`
	NavigationMode string             `json:"navigationMode,omitempty"`
}

type entityResponse struct {
	Success          bool             `json:"success"`
	EntityPrediction []ResolvedEntity `json:"entityPrediction"`
}

// Resolve returns the entity for cfg: a stored schema, the explicit name and
// fields, or the platform's first prediction for in.Link.
func (r *EntityResolver) Resolve(ctx context.Context, cfg EntityConfig, in ResolveInput) (*ResolvedEntity, error) {
	switch {
	case cfg.SchemaID != "":
		if r.schemas == nil {
			return nil, sdkerrors.New(sdkerrors.CodeConfig, "schema service is not configured")
		}
		s, err := r.schemas.Get(ctx, cfg.SchemaID)
		if err != nil {
			return nil, err
		}
		return &ResolvedEntity{Entity: s.Entity, Fields: s.Fields}, nil
	case !cfg.AIDetection():
		return &ResolvedEntity{Entity: cfg.Name, Fields: cfg.Fields}, nil
	}
	if in.Link == "" {
		return nil, sdkerrors.New(sdkerrors.CodeValidation, "link is required for entity detection")
	}
	logger.FromContext(ctx).Debug("detecting entity", "link", in.Link, "navigation_mode", in.NavigationMode)
	resp, err := transport.Do[entityResponse](ctx, r.client, http.MethodPost, entityPath,
		transport.WithBody(entityRequest{Link: in.Link, Location: in.Location, NavigationMode: in.NavigationMode}))
	if err != nil {
		return nil, err
	}
	if len(resp.EntityPrediction) == 0 {
		return nil, sdkerrors.New(sdkerrors.CodeNotFound, "no entity predictions returned").
			WithDetails(map[string]any{"link": in.Link})
	}
	prediction := resp.EntityPrediction[0]
	names := make([]string, 0, len(prediction.Fields))
	for _, f := range prediction.Fields {
		names = append(names, f.Name)
	}
	r.publisher.Publish(ctx, events.New(events.TypeEntityDetected, "", events.EntityDetected{
		EntityName: prediction.Entity,
		Fields:     names,
		URL:        in.Link,
		Navigation: in.NavigationMode,
	}))
	return &prediction, nil
}
