package http

import (
	"time"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
// Counts are -1 when the store could not be listed.
type StatusResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Collections int    `json:"collections"`
	Documents   int    `json:"documents"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DocumentView is one stored chunk as returned by the documents endpoint.
type DocumentView struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	FilePath   string    `json:"file_path"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ChunkIndex int       `json:"chunk_index"`
}

// DocumentsResponse is the response body for GET /api/v1/collections/:name/documents.
type DocumentsResponse struct {
	Collection string         `json:"collection"`
	Documents  []DocumentView `json:"documents"`
}

// SearchRequest is the request body for POST /api/v1/search.
// Empty Collections searches every collection.
type SearchRequest struct {
	Query       string   `json:"query"`
	Collections []string `json:"collections"`
	Limit       int      `json:"limit"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Passages []retrieval.Passage `json:"passages"`
}

// AskRequest is the request body for POST /api/v1/ask.
type AskRequest struct {
	Question    string   `json:"question"`
	Collections []string `json:"collections"`
	Limit       int      `json:"limit"`
}

// AskResponse is the response body for POST /api/v1/ask.
type AskResponse struct {
	Answer   string              `json:"answer"`
	Refused  bool                `json:"refused"`
	Passages []retrieval.Passage `json:"passages"`
}
