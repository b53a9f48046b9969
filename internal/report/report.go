// Package report renders outline entries into the text report format and
// writes it to disk.
package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	headerPrefix = "# Module elements extracted from: "
	// Suffix ends every report file name.
	Suffix = "_elements.txt"

	// PreviewLimit is how many entries Preview prints.
	PreviewLimit = 10
)

// DefaultPath returns "<stem>_elements.txt" for input, relative to the
// current directory.
func DefaultPath(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem + Suffix
}

// Render writes the report for entries extracted from input.
func Render(w io.Writer, input string, entries []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s%s\n\n", headerPrefix, input)
	for _, e := range entries {
		bw.WriteString(e)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteFile writes the report to path. The file is written next to its
// destination and renamed into place, so a failed write leaves no partial
// report behind.
func WriteFile(path, input string, entries []string) (err error) {
	var buf bytes.Buffer
	if err := Render(&buf, input, entries); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".outline-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Preview prints the success line, the entry count and the first limit
// entries.
func Preview(w io.Writer, path string, entries []string, limit int) {
	fmt.Fprintf(w, "✅ Module elements extracted to: %s\n", path)
	fmt.Fprintf(w, "📊 Found %d elements\n", len(entries))

	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, "\n📋 Preview:")
	shown := entries
	if limit >= 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, e := range shown {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if rest := len(entries) - len(shown); rest > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", rest)
	}
}
