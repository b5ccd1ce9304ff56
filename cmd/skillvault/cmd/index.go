package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/javi11/skillvault/internal/config"
	"github.com/javi11/skillvault/internal/indexer"
)

var (
	indexSubfolder string
	indexNoExclude bool
)

func init() {
	indexCmd := &cobra.Command{
		Use:   "index <archive.zip>",
		Short: "Index a local archive and print its node list",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}

	indexCmd.Flags().StringVar(&indexSubfolder, "subfolder", "", "only index files below this path (after the wrapper folder)")
	indexCmd.Flags().BoolVar(&indexNoExclude, "no-exclude", false, "keep node_modules/ and .git/ content")

	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	data, err := afero.ReadFile(afero.NewOsFs(), args[0])
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	excludes := config.DefaultConfig().Import.ExcludedPaths
	if indexNoExclude {
		excludes = []string{}
	}

	result, err := indexer.IndexWithOptions(data, indexer.Options{
		Subfolder: indexSubfolder,
		Excludes:  excludes,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, n := range result.Nodes {
		indent := strings.Repeat("  ", n.Depth-1)
		if n.IsDir() {
			fmt.Fprintf(out, "%s%s/\n", indent, n.Name)
			continue
		}

		size := "?"
		if n.Size != nil {
			size = fmt.Sprintf("%d", *n.Size)
		}
		contentType := ""
		if n.ContentType != nil {
			contentType = *n.ContentType
		}
		fmt.Fprintf(out, "%s%s  (%s bytes, %s)\n", indent, n.Name, size, contentType)
	}

	fmt.Fprintf(out, "\n%d files, %d nodes, %d excluded, %d duplicates\n",
		result.EntryCount, len(result.Nodes), result.Excluded, result.Duplicates)
	return nil
}
