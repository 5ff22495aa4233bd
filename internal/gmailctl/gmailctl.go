// Package gmailctl loads compiled gmailctl filters so their labelling rules
// can seed unclutter groups.
package gmailctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrEmptyExport reports a compile result with nothing in it.
var ErrEmptyExport = errors.New("gmailctl returned no filters or labels")

// Export is the part of `gmailctl compile --format=json` output that group
// import reads.
type Export struct {
	Filters []Filter `json:"filters"`
	Labels  []Label  `json:"labels"`
}

// Filter is one compiled rule. Only the fields a group can reuse are kept.
type Filter struct {
	Criteria FilterCriteria `json:"criteria"`
	Action   FilterAction   `json:"action"`
}

// FilterCriteria holds the predicates that map onto group rules. List is
// decoded so mailing-list filters can be recognised and skipped.
type FilterCriteria struct {
	From    string `json:"from,omitempty"`
	Subject string `json:"subject,omitempty"`
	Query   string `json:"query,omitempty"`
	List    string `json:"list,omitempty"`
}

type FilterAction struct {
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
}

// Label maps a label id in the export to its display name.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LabelName resolves a label id through the export's label table. Ids that
// are not listed are returned unchanged, since gmailctl may emit names.
func (e Export) LabelName(id string) string {
	for _, l := range e.Labels {
		if l.ID == id && l.Name != "" {
			return l.Name
		}
	}
	return id
}

// Exporter yields a compiled filter export.
type Exporter interface {
	ExportFilters(ctx context.Context) (Export, error)
}

// Runner shells out to the gmailctl binary to obtain compiled filters.
type Runner struct {
	Binary    string
	ConfigDir string
}

// ExportFilters invokes gmailctl and parses the resulting JSON export.
func (r Runner) ExportFilters(ctx context.Context) (Export, error) {
	bin := r.Binary
	if bin == "" {
		bin = "gmailctl"
	}
	args := []string{"compile", "--format=json"}
	if strings.TrimSpace(r.ConfigDir) != "" {
		args = append(args, "--config", r.ConfigDir)
	}
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 - binary determined by user input
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Export{}, fmt.Errorf(
				"run gmailctl: %w (output: %s)",
				err,
				strings.TrimSpace(string(exitErr.Stderr)),
			)
		}
		return Export{}, fmt.Errorf("run gmailctl: %w", err)
	}
	return ReadExport(bytes.NewReader(out))
}

// ReadExport decodes a saved `gmailctl compile --format=json` result.
func ReadExport(r io.Reader) (Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return Export{}, fmt.Errorf("decode gmailctl output: %w", err)
	}
	if len(export.Filters) == 0 && len(export.Labels) == 0 {
		return Export{}, ErrEmptyExport
	}
	return export, nil
}

// FileExporter reads an export that was compiled ahead of time.
type FileExporter struct {
	Open func() (io.ReadCloser, error)
}

// ExportFilters reads and decodes the file.
func (f FileExporter) ExportFilters(ctx context.Context) (Export, error) {
	if err := ctx.Err(); err != nil {
		return Export{}, err
	}
	rc, err := f.Open()
	if err != nil {
		return Export{}, fmt.Errorf("open gmailctl export: %w", err)
	}
	defer rc.Close()
	return ReadExport(rc)
}

var (
	_ Exporter = Runner{}
	_ Exporter = FileExporter{}
)
