package validation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/tidwall/gjson"
)

const rulesPath = "/v4/data-validation/rules"

// envelope is the {error, message, data} wrapper of the data validation API.
type envelope[T any] struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// failed reports whether error is set: true, a non-empty string or an object.
func (e envelope[T]) failed() bool {
	if len(e.Error) == 0 {
		return false
	}
	v := gjson.ParseBytes(e.Error)
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.True, gjson.JSON:
		return true
	case gjson.String:
		return v.String() != ""
	default:
		return false
	}
}

// call sends a request and unwraps the envelope, turning an error flag into an *sdkerrors.Error.
func call[T any](ctx context.Context, c *transport.Client, method, path, failure string, opts ...transport.Option) (T, error) {
	var zero T
	env, err := transport.Do[envelope[T]](ctx, c, method, path, opts...)
	if err != nil {
		return zero, err
	}
	if env.failed() {
		msg := env.Message
		if msg == "" {
			msg = failure
		}
		return zero, sdkerrors.New(sdkerrors.CodeHTTP, msg).
			WithDetails(map[string]any{"endpoint": path, "error": string(env.Error)})
	}
	return env.Data, nil
}

func requireID(ctx context.Context, name, id string) error {
	if err := validate.NonEmpty(ctx, name, id); err != nil {
		return sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid "+name, err)
	}
	return nil
}

func intParam(key string, v int) transport.Option {
	if v <= 0 {
		return transport.WithParam(key, "")
	}
	return transport.WithParam(key, strconv.Itoa(v))
}

// Rules manages validation rules.
type Rules struct {
	client *transport.Client
}

func NewRules(client *transport.Client) *Rules {
	return &Rules{client: client}
}

func rulePath(id string, suffix ...string) string {
	p := rulesPath + "/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// List returns rules matching opts.
func (r *Rules) List(ctx context.Context, opts ListRulesOptions) ([]Rule, error) {
	rules, err := call[[]Rule](ctx, r.client, http.MethodGet, rulesPath, "failed to list validation rules",
		transport.WithParam("workflowId", opts.WorkflowID),
		transport.WithParam("status", opts.Status),
		intParam("page", opts.Page),
		intParam("pageSize", opts.PageSize))
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}

// Get fetches a rule by id.
func (r *Rules) Get(ctx context.Context, id string) (*Rule, error) {
	if err := requireID(ctx, "rule id", id); err != nil {
		return nil, err
	}
	return call[*Rule](ctx, r.client, http.MethodGet, rulePath(id), "failed to get validation rule")
}

// GetByName returns the first rule named name, or nil when none matches.
func (r *Rules) GetByName(ctx context.Context, name string) (*Rule, error) {
	rules, err := r.List(ctx, ListRulesOptions{})
	if err != nil {
		return nil, err
	}
	for i := range rules {
		if rules[i].Name == name {
			return &rules[i], nil
		}
	}
	return nil, nil
}

// Create creates a rule.
func (r *Rules) Create(ctx context.Context, in CreateRuleInput) (*Rule, error) {
	if err := requireID(ctx, "workflow id", in.WorkflowID); err != nil {
		return nil, err
	}
	if err := validate.NonEmpty(ctx, "rule name", in.Name); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid rule", err)
	}
	logger.FromContext(ctx).Debug("creating validation rule", "workflow_id", in.WorkflowID, "name", in.Name)
	return call[*Rule](ctx, r.client, http.MethodPost, rulesPath, "failed to create validation rule",
		transport.WithBody(in))
}

// Update changes a rule.
func (r *Rules) Update(ctx context.Context, id string, in UpdateRuleInput) (*Rule, error) {
	if err := requireID(ctx, "rule id", id); err != nil {
		return nil, err
	}
	return call[*Rule](ctx, r.client, http.MethodPut, rulePath(id), "failed to update validation rule",
		transport.WithBody(in))
}

// Delete removes a rule.
func (r *Rules) Delete(ctx context.Context, id string) error {
	if err := requireID(ctx, "rule id", id); err != nil {
		return err
	}
	_, err := call[json.RawMessage](ctx, r.client, http.MethodDelete, rulePath(id), "failed to delete validation rule")
	return err
}

// Disable disables a rule with a reason.
func (r *Rules) Disable(ctx context.Context, id, reason string) (*Rule, error) {
	if err := requireID(ctx, "rule id", id); err != nil {
		return nil, err
	}
	return call[*Rule](ctx, r.client, http.MethodPost, rulePath(id, "disable"), "failed to disable validation rule",
		transport.WithBody(map[string]string{"disabledReason": reason}))
}

// Generate writes one rule from a natural language prompt.
func (r *Rules) Generate(ctx context.Context, in GenerateRuleInput) (*Rule, error) {
	if err := requireID(ctx, "workflow id", in.WorkflowID); err != nil {
		return nil, err
	}
	return call[*Rule](ctx, r.client, http.MethodPost, rulesPath+"/actions/generate",
		"failed to generate validation rule", transport.WithBody(in))
}

// GenerateRules derives rules from the workflow schema.
func (r *Rules) GenerateRules(ctx context.Context, in GenerateRulesInput) ([]Rule, error) {
	if err := requireID(ctx, "workflow id", in.WorkflowID); err != nil {
		return nil, err
	}
	return call[[]Rule](ctx, r.client, http.MethodPost, rulesPath+"/actions/generate-rules",
		"failed to generate validation rules", transport.WithBody(in))
}

// BulkApprove approves rules of a workflow.
func (r *Rules) BulkApprove(ctx context.Context, in BulkInput) (*BulkResult, error) {
	return r.bulk(ctx, "bulk-approve", "failed to bulk approve validation rules", in)
}

// BulkDelete deletes rules of a workflow.
func (r *Rules) BulkDelete(ctx context.Context, in BulkInput) (*BulkResult, error) {
	return r.bulk(ctx, "bulk-delete", "failed to bulk delete validation rules", in)
}

func (r *Rules) bulk(ctx context.Context, action, failure string, in BulkInput) (*BulkResult, error) {
	if err := requireID(ctx, "workflow id", in.WorkflowID); err != nil {
		return nil, err
	}
	if len(in.RuleIDs) == 0 {
		return nil, sdkerrors.New(sdkerrors.CodeValidation, "at least one rule id is required")
	}
	return call[*BulkResult](ctx, r.client, http.MethodPost, rulesPath+"/actions/"+action, failure, transport.WithBody(in))
}

// DeleteAll removes every rule of a workflow.
func (r *Rules) DeleteAll(ctx context.Context, in DeleteAllInput) (*DeleteAllResult, error) {
	if err := requireID(ctx, "workflow id", in.WorkflowID); err != nil {
		return nil, err
	}
	return call[*DeleteAllResult](ctx, r.client, http.MethodDelete, rulesPath+"/actions/delete-all",
		"failed to delete all validation rules", transport.WithBody(in))
}
