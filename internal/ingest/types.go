package ingest

import (
	"time"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/extract"
)

// Status is the outcome of ingesting one file.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one file.
type Outcome struct {
	Path       string `json:"path" yaml:"path"`
	Status     Status `json:"status" yaml:"status"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Documents  int    `json:"documents" yaml:"documents"`
	Err        error  `json:"-" yaml:"-"`
}

// FileResult groups the chunk documents of one processed file.
type FileResult struct {
	RelPath    string
	AbsPath    string
	Collection string
	Kind       extract.Kind
	Size       int64
	ModTime    time.Time
	Documents  []document.Document
}

// Result is the output of ProcessDirectory: the documents of every processed
// file and an outcome for every file visited, both in walk order.
type Result struct {
	Files    []FileResult
	Outcomes []Outcome
}

// Documents returns the documents of all files in walk order.
func (r *Result) Documents() []document.Document {
	var docs []document.Document
	for _, f := range r.Files {
		docs = append(docs, f.Documents...)
	}
	return docs
}

// Summary reports an ingestion run.
type Summary struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Root      string `json:"root" yaml:"root"`
	Files     int    `json:"files" yaml:"files"`
	Processed int    `json:"processed" yaml:"processed"`
	Skipped   int    `json:"skipped" yaml:"skipped"`
	Failed    int    `json:"failed" yaml:"failed"`
	// Documents counts chunks produced; Stored and FailedDocs split them.
	Documents  int `json:"documents" yaml:"documents"`
	Stored     int `json:"stored" yaml:"stored"`
	FailedDocs int `json:"failed_docs" yaml:"failed_docs"`
	// Collections maps each collection to the documents stored in it.
	Collections map[string]int `json:"collections" yaml:"collections"`
	Outcomes    []Outcome      `json:"outcomes" yaml:"outcomes"`
	Duration    time.Duration  `json:"duration" yaml:"duration"`
}

func newSummary(runID, root string) *Summary {
	return &Summary{RunID: runID, Root: root, Collections: make(map[string]int)}
}

func (s *Summary) addOutcome(o Outcome) {
	s.Files++
	switch o.Status {
	case StatusProcessed:
		s.Processed++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}
