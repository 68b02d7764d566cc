// Package ingest turns a directory tree into stored, embedded chunks.
//
// An ingestion run walks the tree in lexical order, extracts the text of each
// supported file, splits it into overlapping chunks, routes every chunk of a
// file to the collection derived from the file's relative path, embeds the
// chunks with bounded parallelism and upserts them into the vector store.
//
// Failures degrade instead of aborting: an unreadable file is recorded as
// failed and the walk continues, a failed chunk embedding is counted and not
// stored, and a store failure is retried document by document. Only invalid
// configuration and context cancellation end a run early.
//
//	orch, err := ingest.New(cfg, extractor, embedder, store,
//	    ingest.WithLogger(logger),
//	    ingest.WithManifest(m),
//	)
//	summary, err := orch.Ingest(ctx, "./docs")
package ingest
