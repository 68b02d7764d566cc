package services

import (
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Registry provides access to all docrag services.
type Registry interface {
	Ingest() *ingest.Orchestrator
	Retrieval() *retrieval.Aggregator
	Answers() *Answerer
	VectorStore() vectorstore.Store
}

// Options configures the registry with service instances.
type Options struct {
	Ingest      *ingest.Orchestrator
	Retrieval   *retrieval.Aggregator
	Answers     *Answerer
	VectorStore vectorstore.Store
}

type registry struct {
	ingest      *ingest.Orchestrator
	retrieval   *retrieval.Aggregator
	answers     *Answerer
	vectorStore vectorstore.Store
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		ingest:      opts.Ingest,
		retrieval:   opts.Retrieval,
		answers:     opts.Answers,
		vectorStore: opts.VectorStore,
	}
}

func (r *registry) Ingest() *ingest.Orchestrator    { return r.ingest }
func (r *registry) Retrieval() *retrieval.Aggregator { return r.retrieval }
func (r *registry) Answers() *Answerer               { return r.answers }
func (r *registry) VectorStore() vectorstore.Store   { return r.vectorStore }
