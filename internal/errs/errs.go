// Package errs declares the error taxonomy shared by docrag's packages.
//
// Every layer wraps one of these sentinels with fmt.Errorf("...: %w", err) so
// callers can classify a failure with errors.Is regardless of where it
// originated:
//
//	if errors.Is(err, errs.ErrInvalidConfiguration) {
//	    // fatal, abort before doing any work
//	}
package errs

import "errors"

var (
	// ErrInvalidConfiguration is fatal at startup and aborts before any work begins.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedFileType marks a file that is skipped, not failed.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrExtraction marks a file whose text could not be extracted.
	ErrExtraction = errors.New("extraction error")

	// ErrEmbeddingService marks a failure of the embedding collaborator.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrVectorStore marks a failure of the vector store collaborator.
	ErrVectorStore = errors.New("vector store error")

	// ErrGenerationService marks a failure of the generation collaborator.
	ErrGenerationService = errors.New("generation service error")
)
