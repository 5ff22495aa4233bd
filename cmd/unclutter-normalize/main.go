package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joshsymonds/unclutter/internal/email"
	"github.com/joshsymonds/unclutter/internal/eml"
	"github.com/joshsymonds/unclutter/internal/gmail"
	"github.com/joshsymonds/unclutter/internal/normalize"
	"github.com/joshsymonds/unclutter/internal/runtime"
)

func main() {
	jsonOut := flag.Bool("json", false, "print each result as JSON")
	minBody := flag.Int("min-body", normalize.DefaultMinBodyLength, "shortest cleaned body kept over the snippet")
	flag.Parse()

	if err := run(flag.Args(), *jsonOut, *minBody, os.Stdin, os.Stdout); err != nil {
		runtime.DefaultLogger().Error("unclutter-normalize failed", "error", err)
		os.Exit(1)
	}
}

// run normalizes each named .eml file, or stdin when none are given.
func run(paths []string, jsonOut bool, minBody int, stdin io.Reader, stdout io.Writer) error {
	p := normalize.New()
	p.MinBodyLength = minBody

	if len(paths) == 0 {
		return normalizeOne(p, "stdin", stdin, jsonOut, stdout)
	}
	for _, path := range paths {
		f, err := os.Open(path) // #nosec G304 - paths come from the command line
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		err = normalizeOne(p, path, f, jsonOut, stdout)
		_ = f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func normalizeOne(p *normalize.Pipeline, name string, r io.Reader, jsonOut bool, w io.Writer) error {
	msg, err := eml.Read(r)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if msg.ID == "" {
		msg.ID = gmail.MessageID(filepath.Base(name))
	}
	e := p.Normalize(msg)
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		return nil
	}
	return printEmail(w, name, e)
}

func printEmail(w io.Writer, name string, e email.Email) error {
	_, err := fmt.Fprintf(w, "== %s\nSubject: %s\nFrom:    %s\nDate:    %s\nSource:  %s\n\n%s\n\n",
		name, e.Subject, e.From, e.ReceivedAt.Format("2006-01-02 15:04"), e.BodySource, e.Body())
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
