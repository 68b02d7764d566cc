package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/services"
	"github.com/fyrsmithlabs/docrag/internal/tui"
)

func newChatCmd(c *cli) *cobra.Command {
	var (
		question    string
		interactive bool
		collections []string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Answer questions from ingested documents",
		Long: `Retrieve the passages closest to a question and answer it from them.
Without --collection every collection is searched. In interactive mode type
exit to quit.

Examples:
  docrag chat --question "When are tax forms due?"
  docrag chat --interactive --collection root --collection pj1-dir1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if question == "" && !interactive {
				return fmt.Errorf("%w: either --question or --interactive is required", errs.ErrInvalidConfiguration)
			}
			ctx := cmd.Context()
			a, _, cleanup, err := c.start(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if limit <= 0 {
				limit = a.Config.Retrieval.Limit
			}
			answers := a.Services.Answers()

			if interactive {
				model := tui.NewChatModel(ctx, answers, collections, limit)
				_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
				if errors.Is(err, tea.ErrProgramKilled) {
					return nil
				}
				return err
			}

			ans, err := answers.Ask(ctx, question, collections, limit)
			if err != nil {
				return err
			}
			return render(c.out, c.output, ans, func() string { return answerText(ans) })
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "start an interactive chat")
	cmd.Flags().StringSliceVarP(&collections, "collection", "c", nil, "collection to search (repeatable; default all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "passages to retrieve (default retrieval.limit)")
	return cmd
}

func answerText(ans *services.Answer) string {
	if ans.Refused || len(ans.Passages) == 0 {
		return ans.Answer
	}
	return ans.Answer + "\n\n" + strings.TrimRight(tui.RenderSources(ans.Passages), "\n")
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		collections []string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Print the passages closest to a query",
		Long: `Search collections for the passages nearest to QUERY without generating
an answer.

Examples:
  docrag search heavy water
  docrag search "tax forms" --collection pj1-dir1 --limit 3 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, cleanup, err := c.start(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			if limit <= 0 {
				limit = a.Config.Retrieval.Limit
			}
			passages, err := a.Services.Answers().Search(ctx, strings.Join(args, " "), collections, limit)
			if err != nil {
				return err
			}
			return render(c.out, c.output, passages, func() string { return passageTable(passages) })
		},
	}

	cmd.Flags().StringSliceVarP(&collections, "collection", "c", nil, "collection to search (repeatable; default all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "passages to return (default retrieval.limit)")
	return cmd
}

func passageTable(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return "No passages found."
	}
	rows := make([][]string, len(passages))
	for i, p := range passages {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.3f", p.Distance),
			p.Collection,
			p.Metadata.File.Path,
			tui.Preview(p.Text),
		}
	}
	return tui.Table([]string{"#", "distance", "collection", "file", "preview"}, rows)
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections and their document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, cleanup, err := c.start(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			infos, err := a.Services.VectorStore().ListCollections(ctx)
			if err != nil {
				return err
			}
			return render(c.out, c.output, infos, func() string {
				if len(infos) == 0 {
					return "No collections. Run docrag ingest first."
				}
				rows := make([][]string, len(infos))
				for i, info := range infos {
					rows[i] = []string{info.Name, strconv.Itoa(info.Count)}
				}
				return tui.Table([]string{"name", "data count"}, rows)
			})
		},
	}
}

// detailRow is one document as printed by detail.
type detailRow struct {
	ID         string `json:"id" yaml:"id"`
	Path       string `json:"file_path" yaml:"file_path"`
	CreatedAt  string `json:"file_created_at" yaml:"file_created_at"`
	UpdatedAt  string `json:"file_updated_at" yaml:"file_updated_at"`
	ChunkIndex int    `json:"chunk_index" yaml:"chunk_index"`
	Preview    string `json:"preview" yaml:"preview"`
}

func newDetailCmd(c *cli) *cobra.Command {
	var (
		collection string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "detail",
		Short: "Show the documents stored in a collection",
		Long: `Print the ID, source file, file timestamps, chunk index and a short
preview of the documents in one collection, ordered by file path then chunk.

Examples:
  docrag detail --collection root
  docrag detail --collection pj1-dir1 --limit 20 -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, cleanup, err := c.start(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := a.Services.VectorStore().Peek(ctx, collection, limit)
			if err != nil {
				return err
			}
			rows := make([]detailRow, len(records))
			for i, r := range records {
				rows[i] = detailRow{
					ID:         r.ID,
					Path:       r.Metadata.File.Path,
					CreatedAt:  tui.FormatTimestamp(r.Metadata.File.CreatedAt),
					UpdatedAt:  tui.FormatTimestamp(r.Metadata.File.UpdatedAt),
					ChunkIndex: r.Metadata.Chunk.Index,
					Preview:    tui.Preview(r.Content),
				}
			}
			return render(c.out, c.output, rows, func() string {
				if len(rows) == 0 {
					return "Collection " + collection + " is empty."
				}
				cells := make([][]string, len(rows))
				for i, r := range rows {
					cells[i] = []string{r.ID, r.Path, r.CreatedAt, r.UpdatedAt, strconv.Itoa(r.ChunkIndex), r.Preview}
				}
				return tui.Table([]string{"id", "file", "created", "updated", "chunk", "preview"}, cells)
			})
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection to show")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "documents to show (default all)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
