package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"outline/internal/analyzer"
	"outline/internal/config"
	"outline/internal/embeddings"
	"outline/internal/indexer"
	"outline/internal/logging"
	"outline/internal/mcp"
	"outline/internal/parser"
	"outline/internal/qdrant"
	"outline/internal/utils"
)

// Build information, set from main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "outline [file]",
		Short: "Extract module outlines from source files",
		Long: "Extract the structural outline of a source file (classes with their bases, methods, " +
			"top-level functions and variables) into a <stem>_elements.txt report. " +
			"Python, JavaScript, TypeScript and Go are supported.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(verbose)
			// Load shared config (~/.outline/config.json) so OPENAI_*/QDRANT_*
			// from that file are visible to every command.
			if err := config.LoadFromUserConfig(); err != nil {
				log.Warn().Err(err).Msg("failed to load config")
			}
			return parser.Check()
		},
		RunE: runOutline,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	root.Flags().StringP("output", "o", "", "Report path (default <stem>_elements.txt in the current directory)")
	root.Flags().String("lang", "", "Force a grammar: python, javascript, typescript or go")

	root.AddCommand(
		newDirCmd(),
		newWatchCmd(),
		newSummarizeCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newClearIndexCmd(),
		newSimilarCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

func newIndexCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "index",
		Short: "Index project outlines into the vector database",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			workers, _ := cmd.Flags().GetInt("workers")
			if workers <= 0 {
				workers = config.GetInt("OUTLINE_WORKERS", indexer.NumWorkers)
			}
			lang, err := langFlag(cmd)
			if err != nil {
				return err
			}

			qc, err := qdrant.NewClient()
			if err != nil {
				return err
			}
			defer qc.Close()

			idx := indexer.NewIndexer(qc, embeddings.NewClient())
			idx.SetWorkers(workers)
			idx.SetLanguage(lang)
			idx.SetOutput(cmd.OutOrStdout())

			fmt.Fprintf(cmd.OutOrStdout(), "Indexing project at: %s\n", dir)
			stats, err := idx.IndexProject(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %d files failed to index; they will be retried on the next run\n", stats.Failed)
			}
			return nil
		},
	}
	c.Flags().String("dir", ".", "Project root directory")
	c.Flags().Int("workers", 0, "Number of concurrent workers (default OUTLINE_WORKERS or 4)")
	c.Flags().String("lang", "", "Force a grammar for every file")
	return c
}

func newSearchCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "search",
		Short: "Semantic search over indexed outlines (same as MCP search_outlines)",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, _ := cmd.Flags().GetString("q")
			topK, _ := cmd.Flags().GetInt("top_k")
			dir, _ := cmd.Flags().GetString("dir")

			qc, err := qdrant.NewClient()
			if err != nil {
				return err
			}
			defer qc.Close()

			searcher, err := indexer.NewSearcher(qc, embeddings.NewClient(), dir)
			if err != nil {
				return err
			}
			hits, err := searcher.Search(cmd.Context(), q, topK)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(mcp.SearchResponse{Results: hits, Total: len(hits)}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	c.Flags().StringP("q", "q", "", "Natural language query")
	c.Flags().Int("top_k", indexer.DefaultTopK, "Maximum number of results to return")
	c.Flags().String("dir", ".", "Project root directory (must match the directory passed to 'outline index')")
	return c
}

func newClearIndexCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "clear-index",
		Short: "Delete the Qdrant collection and local state for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			qc, err := qdrant.NewClient()
			if err != nil {
				return err
			}
			defer qc.Close()

			collection, err := indexer.ClearProject(cmd.Context(), qc, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Collection %s deleted\n", collection)
			return nil
		},
	}
	c.Flags().String("dir", ".", "Project root directory to clear from Qdrant")
	return c
}

func newSimilarCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "similar",
		Short: "Group indexed files whose outlines are near-identical",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			threshold, _ := cmd.Flags().GetFloat64("threshold")

			projectID, err := utils.ComputeProjectID(dir)
			if err != nil {
				return fmt.Errorf("failed to compute project id: %w", err)
			}
			collection := indexer.CollectionName(projectID)

			qc, err := qdrant.NewClient()
			if err != nil {
				return err
			}
			defer qc.Close()

			groups, err := analyzer.NewAnalyzer(qc).FindSimilar(cmd.Context(), collection, threshold)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintf(out, "✓ No outlines above %.2f similarity in %s\n", threshold, collection)
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(out, "→ %d files, avg score %.3f\n", len(g.FilePaths), g.AvgScore)
				for _, f := range g.FilePaths {
					fmt.Fprintf(out, "    %s\n", f)
				}
			}
			return nil
		},
	}
	c.Flags().String("dir", ".", "Project root directory (must match the directory passed to 'outline index')")
	c.Flags().Float64("threshold", analyzer.DefaultThreshold, "Minimum cosine similarity between two outlines")
	return c
}

func newMCPCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			var searcher mcp.OutlineSearcher
			if config.Get("OPENAI_API_KEY", "openai_key") != "" {
				qc, err := qdrant.NewClient()
				if err != nil {
					return err
				}
				defer qc.Close()

				s, err := indexer.NewSearcher(qc, embeddings.NewClient(), dir)
				if err != nil {
					return err
				}
				searcher = s
			}

			server, err := mcp.NewServer(Version, dir, searcher)
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context())
		},
	}
	c.Flags().String("dir", ".", "Project root directory (relative paths and searches are scoped to it)")
	return c
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No grammar check needed to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "outline %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		},
	}
}

func langFlag(cmd *cobra.Command) (parser.Language, error) {
	name, _ := cmd.Flags().GetString("lang")
	if name == "" {
		return "", nil
	}
	return parser.ParseLanguage(name)
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
