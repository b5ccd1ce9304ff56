package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/importer"
	"github.com/javi11/skillvault/internal/progress"
	"github.com/javi11/skillvault/internal/slogutil"
)

var (
	importPicks       []int
	importTags        []string
	importUserID      string
	importActivityLog string
)

func init() {
	importCmd := &cobra.Command{
		Use:   "import <query>",
		Short: "Search the skill index and import the chosen hits",
		Long: `Search the skill index and import the chosen hits. Without --pick the
first hit is imported. Every import runs in its own session; session entries
are printed and also written to the import activity log.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	importCmd.Flags().IntSliceVar(&importPicks, "pick", nil, "1-based result numbers to import (default: 1)")
	importCmd.Flags().StringSliceVar(&importTags, "tags", nil, "tags applied to every imported entry")
	importCmd.Flags().StringVar(&importUserID, "user", "", "owner of the imported entries (default: import.default_user_id)")
	importCmd.Flags().StringVar(&importActivityLog, "activity-log", "imports.log", "rotating JSON log of import sessions")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	logger := slog.Default()
	ctx := cmd.Context()

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	results, err := c.search.SearchResults(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	picked, err := pickResults(results, importPicks)
	if err != nil {
		return err
	}

	activity := slog.New(slogutil.NewHandler(slogutil.Config{
		LogPath:    importActivityLog,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
	}))
	out := cmd.OutOrStdout()

	imports := c.importer.ImportMany(ctx, picked, importer.BatchOptions{
		Tags:   importTags,
		UserID: importUserID,
		OnSession: func(i int, session *progress.Session) {
			title := picked[i].Title
			sessionCtx := session.Context(ctx)
			session.OnEntry(func(e progress.Entry) {
				fmt.Fprintf(out, "[%s] %-8s %-16s %s\n", title, e.Level, e.Step, e.Message)
				activity.InfoContext(sessionCtx, e.Message,
					"title", title,
					"entry_level", string(e.Level),
					"step", e.Step,
					"seq", e.Seq)
			})
		},
	})

	failed := 0
	for i, r := range imports {
		if r == nil {
			continue
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: failed at %s: %s\n", picked[i].Title, r.FailedStep, r.Error)
			continue
		}
		fmt.Fprintf(out, "✓ %s: entry %s, %d files, %d nodes (%d excluded, %d duplicates)\n",
			picked[i].Title, r.Entry.ID, r.EntryCount, r.NodeCount, r.Excluded, r.Duplicates)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, len(imports))
	}
	return nil
}

// pickResults selects 1-based positions from results, defaulting to the first
func pickResults(results []adapter.ScrapeResult, picks []int) ([]adapter.ScrapeResult, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("search returned no results")
	}
	if len(picks) == 0 {
		return results[:1], nil
	}

	picked := make([]adapter.ScrapeResult, 0, len(picks))
	for _, p := range picks {
		if p < 1 || p > len(results) {
			return nil, fmt.Errorf("pick %d is out of range 1-%d", p, len(results))
		}
		picked = append(picked, results[p-1])
	}
	return picked, nil
}
