package main

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/tui"
)

func newIngestCmd(c *cli) *cobra.Command {
	var (
		input     string
		chunkSize int
		force     bool
		watch     bool
	)

	cmd := &cobra.Command{
		Use:     "ingest",
		Aliases: []string{"load"},
		Short:   "Split, embed and store every document under a directory",
		Long: `Walk a directory, extract text from every supported file, split it into
overlapping chunks and store the embedded chunks in one collection per
directory. Files recorded unchanged in the manifest are skipped unless
--force is given. Per-file failures are reported in the summary and do not
fail the command.

Examples:
  docrag ingest --input ./docs
  docrag load --input ./docs --chunk-size 500 --force
  docrag ingest --input ./docs --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, cleanup, err := c.start(ctx, func(cfg *config.Config) {
				if cmd.Flags().Changed("chunk-size") {
					cfg.Ingest.ChunkSize = chunkSize
				}
				if force {
					cfg.Ingest.Force = true
				}
			})
			if err != nil {
				return err
			}
			defer cleanup()

			orch := a.Services.Ingest()
			summary, err := orch.Ingest(ctx, input)
			if summary == nil {
				return err
			}
			if perr := render(c.out, c.output, summary, func() string { return summaryTable(summary) }); perr != nil {
				return perr
			}
			if err != nil {
				// Interrupted part way; what was stored is kept.
				logger.Warn(ctx, "ingestion interrupted", zap.Error(err))
				return nil
			}
			if !watch {
				return nil
			}
			return c.watch(ctx, orch, input, a.Config.Ingest.WatchDebounce, logger)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "directory to ingest")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "chunk length in characters")
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest files the manifest marks unchanged")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-ingest files as they change")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (c *cli) watch(ctx context.Context, orch *ingest.Orchestrator, root string, debounce config.Duration, logger *logging.Logger) error {
	w, err := ingest.NewWatcher(orch, root, debounce.Duration())
	if err != nil {
		return err
	}
	w.OnIngest = func(s *ingest.Summary, err error) {
		if err != nil {
			logger.Warn(ctx, "re-ingestion failed", zap.Error(err))
			return
		}
		_ = render(c.out, c.output, s, func() string { return summaryTable(s) })
	}

	logger.Info(ctx, "watching for changes", zap.String("root", root))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func summaryTable(s *ingest.Summary) string {
	var b strings.Builder
	b.WriteString(tui.Table(
		[]string{"files", "processed", "skipped", "failed", "documents", "stored", "failed docs", "took"},
		[][]string{{
			strconv.Itoa(s.Files),
			strconv.Itoa(s.Processed),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Documents),
			strconv.Itoa(s.Stored),
			strconv.Itoa(s.FailedDocs),
			tui.FormatDuration(s.Duration),
		}},
	))

	if len(s.Collections) > 0 {
		names := make([]string, 0, len(s.Collections))
		for name := range s.Collections {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, len(names))
		for i, name := range names {
			rows[i] = []string{name, strconv.Itoa(s.Collections[name])}
		}
		b.WriteString("\n" + tui.Table([]string{"collection", "stored"}, rows))
	}

	var failed [][]string
	for _, o := range s.Outcomes {
		if o.Status == ingest.StatusFailed {
			failed = append(failed, []string{o.Path, o.Reason})
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n" + tui.Table([]string{"failed file", "reason"}, failed))
	}
	return b.String()
}
