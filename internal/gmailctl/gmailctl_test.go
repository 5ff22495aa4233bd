package gmailctl

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

const sample = `{
  "filters": [
    {"criteria": {"from": "*@mcmaster.ca"}, "action": {"addLabelIds": ["Label_1"]}}
  ],
  "labels": [{"id": "Label_1", "name": "school", "type": "user"}]
}`

func TestReadExport(t *testing.T) {
	export, err := ReadExport(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("ReadExport: %v", err)
	}
	if len(export.Filters) != 1 || export.Filters[0].Criteria.From != "*@mcmaster.ca" {
		t.Fatalf("unexpected filters: %+v", export.Filters)
	}
	if got := export.LabelName("Label_1"); got != "school" {
		t.Fatalf("LabelName = %q", got)
	}
	if got := export.LabelName("news"); got != "news" {
		t.Fatalf("unknown ids should pass through, got %q", got)
	}
}

func TestReadExportErrors(t *testing.T) {
	if _, err := ReadExport(strings.NewReader(`{}`)); !errors.Is(err, ErrEmptyExport) {
		t.Fatalf("expected ErrEmptyExport, got %v", err)
	}
	if _, err := ReadExport(strings.NewReader(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFileExporter(t *testing.T) {
	f := FileExporter{Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(sample)), nil
	}}
	export, err := f.ExportFilters(context.Background())
	if err != nil {
		t.Fatalf("ExportFilters: %v", err)
	}
	if len(export.Labels) != 1 {
		t.Fatalf("unexpected labels: %+v", export.Labels)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.ExportFilters(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestRunnerMissingBinary(t *testing.T) {
	r := Runner{Binary: "/nonexistent/gmailctl-binary"}
	if _, err := r.ExportFilters(context.Background()); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
