package schema

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
)

const schemasPath = "/v4/schemas"

// Service manages stored schemas.
type Service struct {
	client *transport.Client
}

// NewService creates a schema service over client.
func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

type schemaEnvelope struct {
	Data *Schema `json:"data"`
}

type listEnvelope struct {
	Data []Schema `json:"data"`
}

type createResponse struct {
	SchemaID string `json:"schemaId"`
}

func schemaPath(id string) string {
	return schemasPath + "/" + url.PathEscape(id)
}

// Get fetches a schema by id.
func (s *Service) Get(ctx context.Context, id string) (*Schema, error) {
	if err := validate.NonEmpty(ctx, "schema id", id); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid schema id", err)
	}
	logger.FromContext(ctx).Debug("fetching schema", "schema_id", id)
	resp, err := transport.Do[schemaEnvelope](ctx, s.client, http.MethodGet, schemaPath(id))
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, sdkerrors.New(sdkerrors.CodeNotFound, "schema not found: "+id).
			WithDetails(map[string]any{"schemaId": id})
	}
	return resp.Data, nil
}

// List returns every schema visible to the caller.
func (s *Service) List(ctx context.Context) ([]Schema, error) {
	resp, err := transport.Do[listEnvelope](ctx, s.client, http.MethodGet, schemasPath)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create stores a new schema and returns it as persisted.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Schema, error) {
	if err := validate.NonEmpty(ctx, "schema name", input.Name); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid schema", err)
	}
	logger.FromContext(ctx).Debug("creating schema", "name", input.Name)
	resp, err := transport.Do[createResponse](ctx, s.client, http.MethodPost, schemasPath, transport.WithBody(input))
	if err != nil {
		return nil, err
	}
	if resp.SchemaID == "" {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "schema creation returned no id")
	}
	return s.Get(ctx, resp.SchemaID)
}

// CreateFromDefinition stores a built definition under name.
func (s *Service) CreateFromDefinition(ctx context.Context, name string, def Definition) (*Schema, error) {
	return s.Create(ctx, CreateInput{Name: name, Entity: def.EntityName, Fields: def.Fields})
}

// Update changes a schema and returns the updated version.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*Schema, error) {
	if err := validate.NonEmpty(ctx, "schema id", id); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid schema id", err)
	}
	logger.FromContext(ctx).Debug("updating schema", "schema_id", id)
	if err := s.client.Exec(ctx, http.MethodPut, schemaPath(id), transport.WithBody(input)); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a schema.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validate.NonEmpty(ctx, "schema id", id); err != nil {
		return sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid schema id", err)
	}
	logger.FromContext(ctx).Debug("deleting schema", "schema_id", id)
	return s.client.Exec(ctx, http.MethodDelete, schemaPath(id))
}
