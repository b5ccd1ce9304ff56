package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javi11/skillvault/internal/adapter"
	"github.com/javi11/skillvault/internal/config"
	"github.com/javi11/skillvault/internal/httpclient"
	"github.com/javi11/skillvault/internal/search"
)

func init() {
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the skill index and print adapted results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	rootCmd.AddCommand(searchCmd)
}

func newSearchClient(cfg *config.Config) *search.Client {
	return search.NewClient(cfg.Search.BaseURL, httpclient.New(httpclient.WithTimeout(cfg.GetRelayTimeout())))
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	results, err := newSearchClient(cfg).SearchResults(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []adapter.ScrapeResult) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results")
		return
	}

	for i, r := range results {
		fmt.Fprintf(out, "%3d. %s  [%s]  ★%d\n", i+1, r.Title, r.Category, r.Stars)
		if r.Description != "" {
			fmt.Fprintf(out, "     %s\n", r.Description)
		}
		fmt.Fprintf(out, "     %s\n", r.SourceURL)
	}
}
