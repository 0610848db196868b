package main

import (
	"encoding/json"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"textreplay/internal/replay"
)

// report is the output of one replay.
type report struct {
	RunID   string         `json:"run_id"`
	Log     string         `json:"log"`
	Result  *replay.Result `json:"result"`
	Steps   []replay.Step  `json:"steps,omitempty"`
	Failure string         `json:"failure,omitempty"`
}

func (r *report) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r *report) writeText(w io.Writer) error {
	p := message.NewPrinter(language.English)
	res := r.Result

	p.Fprintf(w, "Log:          %s\n", r.Log)
	p.Fprintf(w, "Run:          %s\n", r.RunID)
	p.Fprintf(w, "Events:       %d (%d in focus, %d changed the text)\n", res.Events, res.InFocus, res.Changed)
	p.Fprintf(w, "Corrections:  %d\n", len(res.Corrections))
	p.Fprintf(w, "Diagnostics:  %d\n", len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		p.Fprintf(w, "  [%s] event %d %s: %s", d.Severity, d.EventID, d.Kind, d.Message)
		if d.Kind == replay.KindDiscrepancy || d.Kind == replay.KindNewlineCompensation {
			p.Fprintf(w, " (expected %d, got %d)", d.Expected, d.Actual)
		}
		if d.Context != "" {
			p.Fprintf(w, " near %q", d.Context)
		}
		p.Fprintf(w, "\n")
	}

	if len(r.Steps) > 0 {
		p.Fprintf(w, "Steps:\n")
		for _, s := range r.Steps {
			if !s.Changed {
				p.Fprintf(w, "  #%d event %d\n", s.Index, s.EventID)
				continue
			}
			p.Fprintf(w, "  #%d event %d at %d", s.Index, s.EventID, s.Edit.Offset)
			if s.Edit.Removed != "" {
				p.Fprintf(w, " -%q", s.Edit.Removed)
			}
			if s.Edit.Inserted != "" {
				p.Fprintf(w, " +%q", s.Edit.Inserted)
			}
			p.Fprintf(w, "\n")
		}
	}

	if r.Failure != "" {
		p.Fprintf(w, "Failed:       %s\n", r.Failure)
	}

	p.Fprintf(w, "\n%s\n", res.Text)
	return nil
}
