package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"outline/internal/batch"
	"outline/internal/config"
	"outline/internal/extract"
	"outline/internal/llm"
	"outline/internal/report"
	"outline/internal/watch"
)

func runOutline(cmd *cobra.Command, args []string) error {
	input := config.Get("OUTLINE_DEFAULT_INPUT")
	if len(args) > 0 {
		input = args[0]
	}
	output, _ := cmd.Flags().GetString("output")
	lang, err := langFlag(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(input); err != nil {
		fmt.Fprintf(out, "❌ File not found: %s\n", input)
		fmt.Fprintf(out, "Usage: %s\n", cmd.UseLine())
		return nil
	}

	fmt.Fprintf(out, "🔍 Extracting elements from: %s\n", input)
	extractAndWrite(cmd, extract.New(lang), input, output)
	return nil
}

// extractAndWrite runs one extraction and reports the outcome on the
// command's output. Failures are printed, not returned.
func extractAndWrite(cmd *cobra.Command, svc *extract.Service, input, output string) bool {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	res, err := svc.ExtractFile(input)
	switch {
	case errors.Is(err, extract.ErrNotFound):
		fmt.Fprintf(out, "❌ File not found: %s\n", input)
		return false
	case err != nil:
		fmt.Fprintf(errOut, "Error reading file %s: %v\n", input, err)
		return false
	}

	if output == "" {
		output = report.DefaultPath(input)
	}
	if err := report.WriteFile(output, input, res.Entries); err != nil {
		fmt.Fprintf(errOut, "Error writing to file %s: %v\n", output, err)
		return false
	}

	report.Preview(out, output, res.Entries, report.PreviewLimit)
	return true
}

func newDirCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "dir",
		Short: "Write an outline report for every supported file in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			outDir, _ := cmd.Flags().GetString("out")
			workers, _ := cmd.Flags().GetInt("workers")
			if workers <= 0 {
				workers = config.GetInt("OUTLINE_WORKERS", batch.DefaultWorkers)
			}
			lang, err := langFlag(cmd)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "→ Extracting outlines under %s\n", dir)
			summary, err := batch.Run(cmd.Context(), batch.Options{
				Root:     dir,
				OutDir:   outDir,
				Workers:  workers,
				Language: lang,
				Progress: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			if summary.Files == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "⚠ No source files found")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d reports (%d elements) to %s\n", summary.Written, summary.Entries, outDir)
			if summary.Failed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %d of %d files failed\n", summary.Failed, summary.Files)
			}
			return nil
		},
	}
	c.Flags().String("dir", ".", "Project root directory")
	c.Flags().String("out", "outlines", "Directory the reports are written to")
	c.Flags().Int("workers", 0, "Number of concurrent workers (default OUTLINE_WORKERS or 4)")
	c.Flags().String("lang", "", "Force a grammar for every file")
	return c
}

func newWatchCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "watch <file>",
		Short: "Rewrite a file's outline report every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output, _ := cmd.Flags().GetString("output")
			lang, err := langFlag(cmd)
			if err != nil {
				return err
			}
			if output == "" {
				output = report.DefaultPath(input)
			}

			svc := extract.New(lang)
			fmt.Fprintf(cmd.OutOrStdout(), "🔍 Extracting elements from: %s\n", input)
			extractAndWrite(cmd, svc, input, output)

			w, err := watch.New(input, watch.DefaultDebounce)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "→ Watching %s (Ctrl+C to stop)\n", input)
			return w.Run(cmd.Context(), func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\n🔍 Extracting elements from: %s\n", input)
				extractAndWrite(cmd, svc, input, output)
			})
		},
	}
	c.Flags().StringP("output", "o", "", "Report path (default <stem>_elements.txt in the current directory)")
	c.Flags().String("lang", "", "Force a grammar: python, javascript, typescript or go")
	return c
}

func newSummarizeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "summarize <file>",
		Short: "Describe a file from its outline using a chat model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := langFlag(cmd)
			if err != nil {
				return err
			}
			res, err := extract.New(lang).ExtractFile(args[0])
			if err != nil {
				return err
			}

			summary, err := llm.NewClient().Summarize(cmd.Context(), args[0], res.Entries)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📄 %s\n\n%s\n", args[0], summary.Summary)
			if len(summary.Responsibilities) > 0 {
				fmt.Fprintln(out)
				for _, r := range summary.Responsibilities {
					fmt.Fprintf(out, "  - %s\n", r)
				}
			}
			return nil
		},
	}
	c.Flags().String("lang", "", "Force a grammar: python, javascript, typescript or go")
	return c
}
