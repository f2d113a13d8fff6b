package responder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
)

// PrintHuman writes the summary line followed by one row per thread.
func PrintHuman(rep Report, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	if _, err := fmt.Fprintln(w, rep.Summary()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if len(rep.Results) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, res := range rep.Results {
		detail := res.To
		if res.Err != nil {
			detail = fmt.Sprintf("%s: %v", res.Err.Op, res.Err.Err)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", res.ThreadID, res.Outcome, detail)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

type jsonResult struct {
	ThreadResult
	Op    Op     `json:"op,omitempty"`
	Error string `json:"error,omitempty"`
}

type jsonReport struct {
	Report
	Results []jsonResult `json:"results"`
}

// AppendJSON appends rep as a single JSON line to path, so a long-running
// process accumulates one line per pass. path must stay inside the working
// directory.
func AppendJSON(rep Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}

	out := jsonReport{Report: rep, Results: make([]jsonResult, len(rep.Results))}
	for i, res := range rep.Results {
		out.Results[i] = jsonResult{ThreadResult: res}
		if res.Err != nil {
			out.Results[i].Op = res.Err.Op
			out.Results[i].Error = res.Err.Err.Error()
		}
	}
	line, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	f, err := os.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 - validated above
	if err != nil {
		return fmt.Errorf("open %s: %w", clean, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", clean, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", clean, err)
	}
	return nil
}
