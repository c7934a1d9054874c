package crawler

import (
	"encoding/json"
	"time"
)

// StartRequest starts a crawl from URL.
type StartRequest struct {
	URL             string   `json:"url"`
	MaxDepth        int      `json:"maxDepth,omitempty"`
	MaxPages        int      `json:"maxPages,omitempty"`
	MaxMatches      int      `json:"maxMatches,omitempty"`
	PathsFilterIn   []string `json:"pathsFilterIn,omitempty"`
	PathsFilterOut  []string `json:"pathsFilterOut,omitempty"`
	ConcurrentPages int      `json:"concurrentPages,omitempty"`
	StrictDomain    *bool    `json:"strictDomain,omitempty"`
	SafeMode        bool     `json:"safeMode,omitempty"`
	CallbackURL     string   `json:"callbackUrl,omitempty"`
}

// StartWithConfigRequest starts a crawl using a stored configuration.
type StartWithConfigRequest struct {
	ConfigID string `json:"configId"`
	URL      string `json:"url,omitempty"`
}

// StartResult identifies a started session.
type StartResult struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OperationResult is the answer to pause and resume.
type OperationResult struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Session summarizes a crawl session.
type Session struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	URL       string    `json:"url,omitempty"`
	State     string    `json:"state,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// SessionStatus reports crawl progress.
type SessionStatus struct {
	SessionID    string `json:"sessionId"`
	State        string `json:"state"`
	VisitedPages int    `json:"visitedPages"`
	QueuedPages  int    `json:"queuedPages"`
	FailedPages  int    `json:"failedPages"`
	Error        string `json:"error,omitempty"`
}

// ListOptions pages through sessions.
type ListOptions struct {
	Page     int
	PageSize int
	UserID   string
}

// PagesOptions pages through the crawled pages of a session.
type PagesOptions struct {
	CurrentPage int
	PageSize    int
}

// PageSummary is a crawled page without content.
type PageSummary struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status,omitempty"`
}

// PagesResult is one page of crawled pages.
type PagesResult struct {
	Payload    []PageSummary `json:"payload"`
	Pagination struct {
		CurrentPage int `json:"currentPage"`
		PageSize    int `json:"pageSize"`
		TotalPages  int `json:"totalPages"`
		TotalItems  int `json:"totalItems"`
	} `json:"pagination"`
}

// PageContent is the content of a crawled page in the requested format.
type PageContent struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Format  string `json:"format,omitempty"`
	Content string `json:"content"`
}

// SessionData lists every crawled page of a session.
type SessionData struct {
	SessionID string            `json:"sessionId,omitempty"`
	Data      []json.RawMessage `json:"data"`
}

// Config is a stored crawl configuration.
type Config struct {
	ConfigID  string    `json:"configId"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	StartRequest
}

// DeleteResult is the answer to DeleteConfig.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
