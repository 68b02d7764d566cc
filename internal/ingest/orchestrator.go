package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/events"
	"github.com/fyrsmithlabs/docrag/internal/manifest"
	"github.com/fyrsmithlabs/docrag/internal/splitter"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/ingest"

// Extractor returns the plain text of a file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Manifest remembers files that were fully ingested.
type Manifest interface {
	Unchanged(ctx context.Context, relPath string, size int64, modTime time.Time) (bool, error)
	Record(ctx context.Context, e manifest.Entry) error
}

// Config tunes an ingestion run.
type Config struct {
	// ChunkSize is the chunk length in runes; overlap is ChunkSize/10.
	ChunkSize int
	// FileBatchSize is the number of files embedded and stored together.
	FileBatchSize int
	// MaxFileSize skips larger files; 0 means no limit.
	MaxFileSize int64
	// Exclude holds glob patterns matched against slash relative paths.
	Exclude []string
	// Concurrency bounds parallel embedding requests.
	Concurrency int
	// RequestsPerSecond limits embedding requests; 0 means unlimited.
	RequestsPerSecond float64
	// Force ignores the manifest.
	Force bool
}

// ConfigFrom builds a Config from the ingest and embeddings sections.
func ConfigFrom(ic config.IngestConfig, ec config.EmbeddingsConfig) Config {
	return Config{
		ChunkSize:         ic.ChunkSize,
		FileBatchSize:     ic.FileBatchSize,
		MaxFileSize:       ic.MaxFileSize,
		Exclude:           ic.Exclude,
		Concurrency:       ec.Concurrency,
		RequestsPerSecond: ec.RequestsPerSecond,
		Force:             ic.Force,
	}
}

// Orchestrator runs ingestion.
type Orchestrator struct {
	cfg       Config
	extractor Extractor
	embedder  *BatchEmbedder
	dimension int
	store     vectorstore.Store
	splitter  *splitter.Splitter
	manifest  Manifest
	publisher events.Publisher
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithManifest enables skipping of unchanged files.
func WithManifest(m Manifest) Option {
	return func(o *Orchestrator) { o.manifest = m }
}

// WithPublisher announces file and run outcomes.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// New creates an Orchestrator. Invalid settings return errs.ErrInvalidConfiguration.
func New(cfg Config, extractor Extractor, embedder embeddings.Provider, store vectorstore.Store, opts ...Option) (*Orchestrator, error) {
	if extractor == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("%w: extractor, embedder and store are required", errs.ErrInvalidConfiguration)
	}
	if cfg.FileBatchSize <= 0 {
		cfg.FileBatchSize = 10
	}
	if embedder.Dimension() <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", errs.ErrInvalidConfiguration)
	}
	if err := validatePatterns(cfg.Exclude); err != nil {
		return nil, err
	}
	sp, err := splitter.New(cfg.ChunkSize, splitter.DefaultOverlap(cfg.ChunkSize))
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:       cfg,
		extractor: extractor,
		dimension: embedder.Dimension(),
		store:     store,
		splitter:  sp,
		publisher: events.Noop{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.embedder = NewBatchEmbedder(embedder, cfg.Concurrency, cfg.RequestsPerSecond, o.logger)
	return o, nil
}

// Ingest walks root and embeds and stores every supported file. The summary
// is returned even when ctx is cancelled part way, together with ctx.Err().
func (o *Orchestrator) Ingest(ctx context.Context, root string) (*Summary, error) {
	root, err := validateRoot(root)
	if err != nil {
		return nil, err
	}
	candidates, err := o.walk(ctx, root)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, root, candidates, o.cfg.Force)
}

// IngestFiles re-ingests the given paths relative to root, ignoring the
// manifest. Paths that no longer exist, and paths the walk would exclude,
// are skipped.
func (o *Orchestrator) IngestFiles(ctx context.Context, root string, relPaths []string) (*Summary, error) {
	root, err := validateRoot(root)
	if err != nil {
		return nil, err
	}
	sorted := append([]string(nil), relPaths...)
	sort.Strings(sorted)

	patterns := o.excludePatterns(root)
	candidates := make([]candidate, 0, len(sorted))
	for _, rel := range sorted {
		if rel == IgnoreFile || excluded(filepath.ToSlash(rel), patterns) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if errors.Is(err, os.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
			continue
		}
		candidates = append(candidates, candidate{abs: abs, rel: filepath.ToSlash(rel), info: info, err: err})
	}
	return o.run(ctx, root, candidates, true)
}

func (o *Orchestrator) run(ctx context.Context, root string, candidates []candidate, force bool) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run.id", runID))

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "ingest.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("root", root),
		attribute.Int("files", len(candidates)),
	)

	summary := newSummary(runID, root)
	logger.Info("ingestion started", zap.String("root", root), zap.Int("files", len(candidates)))

	var runErr error
	for i := 0; i < len(candidates) && runErr == nil; i += o.cfg.FileBatchSize {
		end := min(i+o.cfg.FileBatchSize, len(candidates))
		runErr = o.runBatch(ctx, logger, runID, candidates[i:end], force, summary)
	}

	summary.Duration = time.Since(start)
	RunDuration.Observe(summary.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("processed", summary.Processed),
		attribute.Int("stored", summary.Stored),
		attribute.Int("failed_docs", summary.FailedDocs),
	)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Warn("ingestion aborted", zap.Error(runErr), zap.Int("files_done", summary.Files))
		return summary, runErr
	}

	logger.Info("ingestion completed",
		zap.Int("files", summary.Files),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("stored", summary.Stored),
		zap.Int("failed_docs", summary.FailedDocs),
		zap.Duration("duration", summary.Duration),
	)
	if err := o.publisher.PublishRun(ctx, events.RunEvent{
		RunID:       runID,
		Root:        root,
		Files:       summary.Files,
		Processed:   summary.Processed,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		Stored:      summary.Stored,
		FailedDocs:  summary.FailedDocs,
		Collections: summary.Collections,
		Duration:    summary.Duration,
	}); err != nil {
		logger.Warn("publishing run event", zap.Error(err))
	}
	return summary, nil
}

// runBatch processes, embeds and stores one batch of files, then records
// their outcomes in summary.
func (o *Orchestrator) runBatch(ctx context.Context, logger *zap.Logger, runID string, batch []candidate, force bool, summary *Summary) error {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "ingest.batch")
	defer span.End()

	outcomes := make([]Outcome, 0, len(batch))
	var files []FileResult
	fileOutcome := make(map[string]int)

	for _, c := range batch {
		if !force && o.manifest != nil && c.err == nil {
			unchanged, err := o.manifest.Unchanged(ctx, c.rel, c.info.Size(), c.info.ModTime())
			if err != nil {
				logger.Warn("manifest lookup failed", zap.String("path", c.rel), zap.Error(err))
			} else if unchanged {
				outcomes = append(outcomes, Outcome{Path: c.rel, Status: StatusSkipped, Reason: "unchanged since last ingestion"})
				continue
			}
		}

		fr, outcome, err := o.processFile(ctx, c)
		if err != nil {
			return err
		}
		if outcome.Status == StatusProcessed {
			fileOutcome[fr.RelPath] = len(outcomes)
			files = append(files, fr)
		}
		outcomes = append(outcomes, outcome)
	}

	stored, err := o.storeFiles(ctx, logger, files, summary)
	if err != nil {
		return err
	}

	for _, fr := range files {
		idx := fileOutcome[fr.RelPath]
		failed := len(fr.Documents) - stored[fr.RelPath]
		if failed > 0 {
			outcomes[idx].Reason = fmt.Sprintf("%d of %d documents failed", failed, len(fr.Documents))
			continue
		}
		if o.manifest != nil {
			err := o.manifest.Record(ctx, manifest.Entry{
				Path:       fr.RelPath,
				Collection: fr.Collection,
				Size:       fr.Size,
				ModTime:    fr.ModTime,
				Chunks:     len(fr.Documents),
			})
			if err != nil {
				logger.Warn("manifest record failed", zap.String("path", fr.RelPath), zap.Error(err))
			}
		}
	}

	for _, outcome := range outcomes {
		summary.addOutcome(outcome)
		FilesTotal.WithLabelValues(string(outcome.Status)).Inc()
		if outcome.Status != StatusProcessed {
			logger.Debug("file not ingested",
				zap.String("path", outcome.Path),
				zap.String("status", string(outcome.Status)),
				zap.String("reason", outcome.Reason),
			)
		}
		err := o.publisher.PublishFile(ctx, events.FileEvent{
			RunID:      runID,
			Path:       outcome.Path,
			Collection: outcome.Collection,
			Status:     string(outcome.Status),
			Reason:     outcome.Reason,
			Documents:  outcome.Documents,
		})
		if err != nil {
			logger.Warn("publishing file event", zap.String("path", outcome.Path), zap.Error(err))
		}
	}
	return nil
}

// storeFiles embeds the documents of files and stores them per collection.
// It returns the number of stored documents per file.
func (o *Orchestrator) storeFiles(ctx context.Context, logger *zap.Logger, files []FileResult, summary *Summary) (map[string]int, error) {
	stored := make(map[string]int, len(files))

	var docs []document.Document
	for _, fr := range files {
		docs = append(docs, fr.Documents...)
	}
	summary.Documents += len(docs)
	if len(docs) == 0 {
		return stored, nil
	}

	embedded := o.embedder.EmbedBatch(ctx, docs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byCollection := make(map[string][]vectorstore.Record)
	owner := make(map[string]string, len(docs))
	k := 0
	for _, fr := range files {
		for _, d := range fr.Documents {
			e := embedded[k]
			k++
			if e.Failed() {
				o.failDocs(summary, 1)
				continue
			}
			owner[d.ID] = fr.RelPath
			byCollection[fr.Collection] = append(byCollection[fr.Collection], vectorstore.Record{Document: d, Embedding: e.Vector})
		}
	}

	names := make([]string, 0, len(byCollection))
	for name := range byCollection {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		records := byCollection[name]
		ok := o.storeCollection(ctx, logger, name, records)
		for _, r := range ok {
			stored[owner[r.ID]]++
		}
		if len(ok) > 0 {
			summary.Collections[name] += len(ok)
		}
		summary.Stored += len(ok)
		o.failDocs(summary, len(records)-len(ok))
		DocumentsTotal.WithLabelValues("stored").Add(float64(len(ok)))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// storeCollection adds records to one collection and returns the ones that
// were stored. A failed batch add is retried one record at a time.
func (o *Orchestrator) storeCollection(ctx context.Context, logger *zap.Logger, name string, records []vectorstore.Record) []vectorstore.Record {
	if err := o.store.CreateOrGet(ctx, name); err != nil {
		logger.Error("creating collection", zap.String("collection", name), zap.Error(err))
		return nil
	}

	err := o.store.Add(ctx, name, records)
	if err == nil {
		return records
	}
	logger.Warn("batch add failed, retrying per document",
		zap.String("collection", name),
		zap.Int("documents", len(records)),
		zap.Error(err),
	)

	var ok []vectorstore.Record
	for _, r := range records {
		if err := o.store.Add(ctx, name, []vectorstore.Record{r}); err != nil {
			logger.Error("storing document", zap.String("collection", name), zap.String("id", r.ID), zap.Error(err))
			continue
		}
		ok = append(ok, r)
	}
	return ok
}

func (o *Orchestrator) failDocs(summary *Summary, n int) {
	if n == 0 {
		return
	}
	summary.FailedDocs += n
	DocumentsTotal.WithLabelValues("failed").Add(float64(n))
}
