// Package batch writes outline reports for every supported file under a
// project directory.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"outline/internal/extract"
	"outline/internal/parser"
	"outline/internal/report"
	"outline/internal/utils"
)

const DefaultWorkers = 4

type Options struct {
	Root    string
	OutDir  string
	Workers int
	// Language forces one grammar for every file when set.
	Language parser.Language
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
}

type Summary struct {
	Files   int
	Written int
	Failed  int
	Entries int
}

// Run extracts every supported file under opts.Root and writes one report per
// file beneath opts.OutDir, mirroring the source layout. A file that fails
// is logged and counted; it does not stop the run.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	root, err := utils.NormalizeProjectRoot(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize project root: %w", err)
	}
	outDir, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, err
	}

	files, err := utils.GetAllSourceFiles(root)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Files: len(files)}
	if len(files) == 0 {
		return summary, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("Extracting outlines"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	svc := extract.New(opts.Language)
	reports := ReportPaths(outDir, root, files)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fileCh := make(chan string)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileCh {
				n, err := processFile(svc, root, reports[path], path)

				mu.Lock()
				if err != nil {
					summary.Failed++
					log.Warn().Err(err).Str("file", path).Msg("outline failed")
				} else {
					summary.Written++
					summary.Entries += n
				}
				mu.Unlock()
				_ = bar.Add(1)
			}
		}()
	}

feed:
	for _, f := range files {
		select {
		case fileCh <- f:
		case <-ctx.Done():
			break feed
		}
	}
	close(fileCh)
	wg.Wait()
	_ = bar.Finish()

	return summary, ctx.Err()
}

// ReportPath returns where the report for file is written: the file's path
// relative to root, re-rooted under outDir, with the report file name.
func ReportPath(outDir, root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	return filepath.Join(outDir, filepath.Dir(rel), report.DefaultPath(rel))
}

// ReportPaths assigns a distinct report path to every file. Files that would
// share a report, like util.py and util.js, keep their extension in the name
// (util.py_elements.txt); any clash left after that gets a numeric suffix.
func ReportPaths(outDir, root string, files []string) map[string]string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	wanted := make(map[string]int, len(sorted))
	for _, f := range sorted {
		wanted[ReportPath(outDir, root, f)]++
	}

	paths := make(map[string]string, len(sorted))
	taken := make(map[string]bool, len(sorted))
	for _, f := range sorted {
		p := ReportPath(outDir, root, f)
		if wanted[p] > 1 {
			p = filepath.Join(filepath.Dir(p), filepath.Base(f)+report.Suffix)
		}
		if taken[p] {
			base := strings.TrimSuffix(p, report.Suffix)
			for n := 2; taken[p]; n++ {
				p = base + "_" + strconv.Itoa(n) + report.Suffix
			}
		}
		taken[p] = true
		paths[f] = p
	}
	return paths
}

func processFile(svc *extract.Service, root, out, path string) (int, error) {
	res, err := svc.ExtractFile(path)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, err
	}

	input := path
	if rel, err := filepath.Rel(root, path); err == nil {
		input = filepath.ToSlash(rel)
	}
	if err := report.WriteFile(out, input, res.Entries); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", out, err)
	}

	log.Debug().Str("file", path).Str("report", out).Int("entries", len(res.Entries)).Msg("wrote report")
	return len(res.Entries), nil
}
