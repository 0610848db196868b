package replay

import (
	"iter"
	"log/slog"

	"textreplay/internal/event"
	"textreplay/internal/focus"
)

// DefaultContextSize is the number of characters on each side of the cursor
// quoted in discrepancy diagnostics.
const DefaultContextSize = 20

// Options configures a Reconstructor.
type Options struct {
	// Target is the application whose events are replayed.
	Target focus.State

	// Rules maps focus outputs to applications.
	Rules focus.Rules

	// ContextSize is the diagnostic context radius in characters.
	ContextSize int

	// SkipTextLoad treats the first appearance of text on a non-keystroke
	// event as the seed loading into the editor instead of an edit.
	SkipTextLoad bool

	// Logger receives diagnostics as they are recorded. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns options for Word sessions.
func DefaultOptions() Options {
	return Options{
		Target:      focus.StateWord,
		Rules:       focus.DefaultRules(),
		ContextSize: DefaultContextSize,
	}
}

// Step is the fold state after one in-focus event. Index is the event's
// position in the unfiltered log; Changed reports whether the buffer was
// modified.
type Step struct {
	Index   int    `json:"index"`
	EventID int    `json:"event_id"`
	Changed bool   `json:"changed"`
	Edit    Edit   `json:"edit"`
	Text    string `json:"text"`
}

// Result summarizes a finished replay.
type Result struct {
	Text        string       `json:"text"`
	Events      int          `json:"events"`
	InFocus     int          `json:"in_focus"`
	Changed     int          `json:"changed"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Corrections map[int]int  `json:"corrections,omitempty"`
}

// Reconstructor folds event logs into document text.
type Reconstructor struct {
	opts Options
}

// New creates a Reconstructor.
func New(opts Options) *Reconstructor {
	if opts.Target == "" {
		opts.Target = focus.StateWord
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Reconstructor{opts: opts}
}

// Replay is a single pass of the fold over one log. It owns the text buffer
// and the ledger; nothing else may touch them while the pass runs.
type Replay struct {
	opts    Options
	log     *event.Log
	ledger  *Ledger
	text    []rune
	inFocus int
	changed int
	started bool
}

// NewReplay prepares a pass over log starting from seed.
func (r *Reconstructor) NewReplay(log *event.Log, seed string) *Replay {
	return &Replay{
		opts:   r.opts,
		log:    log,
		ledger: NewLedger(r.opts.Logger, r.opts.ContextSize),
		text:   []rune(seed),
	}
}

// Windows yields the windows of this pass.
func (p *Replay) Windows() iter.Seq[Window] {
	tracker := focus.NewTracker(p.opts.Rules)
	return Windows(p.log, focus.Filter(p.log, tracker, p.opts.Target), p.ledger)
}

// Steps runs the fold, yielding the buffer after every in-focus event. After a
// fatal error is yielded the sequence ends. A Replay can be stepped once.
func (p *Replay) Steps() iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		p.run(func(s Step, err error) bool {
			if err == nil {
				s.Text = string(p.text)
			}
			return yield(s, err)
		})
	}
}

// Run drives the fold to completion and returns the first fatal error.
func (p *Replay) Run() error {
	var failure error
	p.run(func(_ Step, err error) bool {
		failure = err
		return err == nil
	})
	return failure
}

// Text returns the current buffer.
func (p *Replay) Text() string {
	return string(p.text)
}

// Ledger returns the pass's ledger.
func (p *Replay) Ledger() *Ledger {
	return p.ledger
}

// Result summarizes the pass so far.
func (p *Replay) Result() *Result {
	return &Result{
		Text:        string(p.text),
		Events:      p.log.Len(),
		InFocus:     p.inFocus,
		Changed:     p.changed,
		Diagnostics: p.ledger.Diagnostics(),
		Corrections: p.ledger.Corrections(),
	}
}

func (p *Replay) run(emit func(Step, error) bool) {
	if p.started {
		return
	}
	p.started = true

	for w := range p.Windows() {
		p.inFocus++
		s, err := p.advance(w)
		if err != nil {
			emit(s, err)
			return
		}
		if !emit(s, nil) {
			return
		}
	}
}

// advance applies one window to the buffer.
func (p *Replay) advance(w Window) (Step, error) {
	s := Step{Index: w.Index, EventID: w.Curr.ID}

	if p.opts.SkipTextLoad && w.IsTextLoadEvent() {
		p.ledger.record(Diagnostic{
			EventID:  w.Curr.ID,
			Severity: SeverityInfo,
			Kind:     KindTextLoad,
			Message:  "initial text load, buffer kept as seed",
		})
		return s, nil
	}
	if !w.TextChanges() {
		return s, nil
	}

	next, edit, err := Apply(w, p.text)
	if err != nil {
		return s, err
	}
	p.text = next
	if !edit.IsZero() {
		p.changed++
		s.Changed = true
		s.Edit = edit
	}
	return s, nil
}

// Run replays log from seed and returns every step with the summary. On a
// fatal error the steps and summary up to the failing event are returned
// with it.
func (r *Reconstructor) Run(log *event.Log, seed string) ([]Step, *Result, error) {
	p := r.NewReplay(log, seed)
	var steps []Step
	for s, err := range p.Steps() {
		if err != nil {
			return steps, p.Result(), err
		}
		steps = append(steps, s)
	}
	return steps, p.Result(), nil
}

// Final replays log from seed and returns only the summary and final text.
// On a fatal error the summary up to the failing event is returned with it.
func (r *Reconstructor) Final(log *event.Log, seed string) (*Result, error) {
	p := r.NewReplay(log, seed)
	err := p.Run()
	return p.Result(), err
}
