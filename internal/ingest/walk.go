package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/collections"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/extract"
	"github.com/fyrsmithlabs/docrag/internal/ignore"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
}

// IgnoreFile lists exclude patterns, one per line in gitignore syntax, at the
// ingestion root.
const IgnoreFile = ".docragignore"

// candidate is a regular file found by the walk.
type candidate struct {
	abs  string
	rel  string // slash separated, relative to the root
	info fs.FileInfo
	err  error // set when the entry could not be read
}

// ProcessDirectory walks root and extracts, splits and names every supported
// file without embedding or storing anything.
func (o *Orchestrator) ProcessDirectory(ctx context.Context, root string) (*Result, error) {
	root, err := validateRoot(root)
	if err != nil {
		return nil, err
	}
	candidates, err := o.walk(ctx, root)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, c := range candidates {
		fr, outcome, err := o.processFile(ctx, c)
		if err != nil {
			return nil, err
		}
		if outcome.Status == StatusProcessed {
			result.Files = append(result.Files, fr)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func validateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: input directory required", errs.ErrInvalidConfiguration)
	}
	clean, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %w", errs.ErrInvalidConfiguration, root, err)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrInvalidConfiguration, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: input must be a directory: %s", errs.ErrInvalidConfiguration, clean)
	}
	return clean, nil
}

// walk lists regular files under root in lexical order.
func (o *Orchestrator) walk(ctx context.Context, root string) ([]candidate, error) {
	patterns := o.excludePatterns(root)

	var out []candidate
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			if p == root {
				return walkErr
			}
			out = append(out, candidate{abs: p, rel: rel, err: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || rel == IgnoreFile || excluded(rel, patterns) {
			return nil
		}

		info, err := d.Info()
		out = append(out, candidate{abs: p, rel: rel, info: info, err: err})
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return out, nil
}

// excludePatterns merges the configured excludes with the ignore file at root.
func (o *Orchestrator) excludePatterns(root string) []string {
	patterns := append([]string(nil), o.cfg.Exclude...)
	fromFile, err := ignore.NewParser(IgnoreFile).ParseProject(root)
	if err != nil {
		o.logger.Warn("reading ignore file", zap.String("file", IgnoreFile), zap.Error(err))
	}
	return append(patterns, fromFile...)
}

// processFile extracts and splits one file. The returned error is non-nil
// only when ctx is done; every other failure is reported in the Outcome.
func (o *Orchestrator) processFile(ctx context.Context, c candidate) (FileResult, Outcome, error) {
	outcome := Outcome{Path: c.rel}
	fail := func(status Status, err error) (FileResult, Outcome, error) {
		outcome.Status = status
		outcome.Err = err
		outcome.Reason = err.Error()
		return FileResult{}, outcome, nil
	}

	if err := ctx.Err(); err != nil {
		return FileResult{}, outcome, err
	}
	if c.err != nil {
		return fail(StatusFailed, fmt.Errorf("%w: reading %s: %w", errs.ErrExtraction, c.rel, c.err))
	}

	kind := extract.KindFor(c.rel)
	if kind == extract.KindUnknown {
		return fail(StatusSkipped, fmt.Errorf("%w: %s", errs.ErrUnsupportedFileType, c.rel))
	}
	if o.cfg.MaxFileSize > 0 && c.info.Size() > o.cfg.MaxFileSize {
		return fail(StatusSkipped, fmt.Errorf("file exceeds max size (%d > %d bytes)", c.info.Size(), o.cfg.MaxFileSize))
	}

	text, err := o.extractor.Extract(ctx, c.abs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return FileResult{}, outcome, ctxErr
		}
		if errors.Is(err, errs.ErrUnsupportedFileType) {
			return fail(StatusSkipped, err)
		}
		if !errors.Is(err, errs.ErrExtraction) {
			err = fmt.Errorf("%w: %w", errs.ErrExtraction, err)
		}
		return fail(StatusFailed, err)
	}

	created, updated := fileTimes(c.abs, c.info)
	docs := document.FromChunks(c.rel, o.splitter.Split(text), created, updated)
	collection := collections.NameFor(c.rel)

	outcome.Status = StatusProcessed
	outcome.Collection = collection
	outcome.Documents = len(docs)

	return FileResult{
		RelPath:    c.rel,
		AbsPath:    c.abs,
		Collection: collection,
		Kind:       kind,
		Size:       c.info.Size(),
		ModTime:    c.info.ModTime(),
		Documents:  docs,
	}, outcome, nil
}

// excluded reports whether rel matches any pattern. Patterns without a slash
// also match the base name; a leading "**/" matches at any depth and a
// trailing "/**" matches everything below a directory.
func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if !strings.Contains(p, "/") {
			if ok, _ := path.Match(p, path.Base(rel)); ok {
				return true
			}
		}
		if globMatch(p, rel) {
			return true
		}
	}
	return false
}

func globMatch(pattern, rel string) bool {
	segs := strings.Split(rel, "/")
	switch {
	case strings.HasPrefix(pattern, "**/"):
		rest := pattern[3:]
		for i := range segs {
			if globMatch(rest, strings.Join(segs[i:], "/")) {
				return true
			}
		}
		return false
	case strings.HasSuffix(pattern, "/**"):
		dir := strings.TrimSuffix(pattern, "/**")
		for i := 1; i < len(segs); i++ {
			if ok, _ := path.Match(dir, strings.Join(segs[:i], "/")); ok {
				return true
			}
		}
		return false
	default:
		ok, _ := path.Match(pattern, rel)
		return ok
	}
}

// validatePatterns rejects malformed globs before a run starts.
func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := path.Match(strings.Trim(p, "*/"), "x"); err != nil {
			return fmt.Errorf("%w: invalid exclude pattern %q: %w", errs.ErrInvalidConfiguration, p, err)
		}
	}
	return nil
}

func statDir(p string) (bool, error) {
	info, err := os.Stat(p)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
