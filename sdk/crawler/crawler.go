// Package crawler drives crawl sessions and their stored configurations.
package crawler

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
)

const crawlPath = "/v4/crawl"

// Service wraps the crawl endpoints.
type Service struct {
	client *transport.Client
}

func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

func sessionPath(id string, suffix ...string) string {
	p := crawlPath + "/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + url.PathEscape(s)
	}
	return p
}

func requireID(ctx context.Context, name, id string) error {
	if err := validate.NonEmpty(ctx, name, id); err != nil {
		return sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid "+name, err)
	}
	return nil
}

func positive(key string, v int) transport.Option {
	if v <= 0 {
		return transport.WithParam(key, "")
	}
	return transport.WithParam(key, strconv.Itoa(v))
}

// Start starts a crawl session.
func (s *Service) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if err := validate.URL(ctx, req.URL); err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeValidation, "invalid crawl url", err)
	}
	logger.FromContext(ctx).Debug("starting crawl", "url", req.URL, "max_pages", req.MaxPages)
	return s.start(ctx, crawlPath, req)
}

// StartWithConfig starts a crawl session from a stored configuration.
func (s *Service) StartWithConfig(ctx context.Context, req StartWithConfigRequest) (*StartResult, error) {
	if err := requireID(ctx, "config id", req.ConfigID); err != nil {
		return nil, err
	}
	return s.start(ctx, crawlPath+"/start", req)
}

func (s *Service) start(ctx context.Context, path string, body any) (*StartResult, error) {
	res, err := transport.Do[StartResult](ctx, s.client, http.MethodPost, path, transport.WithBody(body))
	if err != nil {
		return nil, err
	}
	if res.SessionID == "" {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "crawl start returned no session id").
			WithDetails(map[string]any{"error": res.Error, "message": res.Message})
	}
	return &res, nil
}

// Pause pauses a running session.
func (s *Service) Pause(ctx context.Context, sessionID string) (*OperationResult, error) {
	return s.operate(ctx, "pause", sessionID)
}

// Resume resumes a paused session.
func (s *Service) Resume(ctx context.Context, sessionID string) (*OperationResult, error) {
	return s.operate(ctx, "resume", sessionID)
}

func (s *Service) operate(ctx context.Context, action, sessionID string) (*OperationResult, error) {
	if err := requireID(ctx, "session id", sessionID); err != nil {
		return nil, err
	}
	res, err := transport.Do[OperationResult](ctx, s.client, http.MethodPost, crawlPath+"/"+action,
		transport.WithBody(map[string]string{"sessionId": sessionID}))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListSessions returns sessions visible to the caller.
func (s *Service) ListSessions(ctx context.Context, opts ListOptions) ([]Session, error) {
	res, err := transport.Do[struct {
		Data []Session `json:"data"`
	}](ctx, s.client, http.MethodGet, crawlPath+"/sessions",
		positive("page", opts.Page),
		positive("pageSize", opts.PageSize),
		transport.WithParam("userId", opts.UserID))
	if err != nil {
		return nil, err
	}
	if res.Data == nil {
		return []Session{}, nil
	}
	return res.Data, nil
}

// Status returns the progress of a session.
func (s *Service) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if err := requireID(ctx, "session id", sessionID); err != nil {
		return nil, err
	}
	res, err := transport.Do[SessionStatus](ctx, s.client, http.MethodGet, sessionPath(sessionID, "status"))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Pages lists crawled pages of a session.
func (s *Service) Pages(ctx context.Context, sessionID string, opts PagesOptions) (*PagesResult, error) {
	if err := requireID(ctx, "session id", sessionID); err != nil {
		return nil, err
	}
	res, err := transport.Do[PagesResult](ctx, s.client, http.MethodGet, sessionPath(sessionID, "pages"),
		positive("currentPage", opts.CurrentPage),
		positive("pageSize", opts.PageSize))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Page returns one crawled page; format is html or markdown and may be empty.
func (s *Service) Page(ctx context.Context, sessionID, pageID, format string) (*PageContent, error) {
	if err := requireID(ctx, "session id", sessionID); err != nil {
		return nil, err
	}
	if err := requireID(ctx, "page id", pageID); err != nil {
		return nil, err
	}
	res, err := transport.Do[PageContent](ctx, s.client, http.MethodGet, sessionPath(sessionID, "pages", pageID),
		transport.WithParam("format", format))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// AllSessionData returns every crawled page of a session.
func (s *Service) AllSessionData(ctx context.Context, sessionID string, includeAll bool) (*SessionData, error) {
	if err := requireID(ctx, "session id", sessionID); err != nil {
		return nil, err
	}
	opts := []transport.Option{}
	if includeAll {
		opts = append(opts, transport.WithParam("includeAll", "true"))
	}
	res, err := transport.Do[SessionData](ctx, s.client, http.MethodGet, sessionPath(sessionID, "list"), opts...)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// BucketFile downloads a stored crawl artifact by its base64 file name.
func (s *Service) BucketFile(ctx context.Context, filenameB64 string) (json.RawMessage, error) {
	if err := requireID(ctx, "file name", filenameB64); err != nil {
		return nil, err
	}
	return transport.Do[json.RawMessage](ctx, s.client, http.MethodGet,
		crawlPath+"/bucket/data/"+url.PathEscape(filenameB64))
}

// CreateConfig stores a crawl configuration.
func (s *Service) CreateConfig(ctx context.Context, req StartRequest) (*Config, error) {
	res, err := transport.Do[Config](ctx, s.client, http.MethodPost, crawlPath+"/config", transport.WithBody(req))
	if err != nil {
		return nil, err
	}
	if res.ConfigID == "" {
		return nil, sdkerrors.New(sdkerrors.CodeInternal, "crawl config creation returned no id")
	}
	return &res, nil
}

// GetConfig fetches a stored crawl configuration.
func (s *Service) GetConfig(ctx context.Context, configID string) (*Config, error) {
	if err := requireID(ctx, "config id", configID); err != nil {
		return nil, err
	}
	res, err := transport.Do[Config](ctx, s.client, http.MethodGet, crawlPath+"/config/"+url.PathEscape(configID))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteConfig removes a stored crawl configuration.
func (s *Service) DeleteConfig(ctx context.Context, configID string) (*DeleteResult, error) {
	if err := requireID(ctx, "config id", configID); err != nil {
		return nil, err
	}
	res, err := transport.Do[DeleteResult](ctx, s.client, http.MethodDelete, crawlPath+"/config",
		transport.WithBody(map[string]string{"configId": configID}))
	if err != nil {
		return nil, err
	}
	return &res, nil
}
