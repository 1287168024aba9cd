package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"poststudio/internal/changes"
	"poststudio/internal/editor"
	"poststudio/internal/logging"
	"poststudio/internal/prompt"
	"poststudio/internal/stream"
)

// Phase is where a block's rewrite currently stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrompting
	PhaseStreaming
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePrompting:
		return "prompting"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// ErrEmptySelection means the resolved rewrite target contains no text.
// Caught before any network call.
var ErrEmptySelection = errors.New("nothing selected to rewrite")

// StreamOpener opens a streaming completion. Satisfied by the gateway.
type StreamOpener interface {
	OpenStream(ctx context.Context, apiKey, systemPrompt, userPrompt string) (io.ReadCloser, error)
}

// Command is one user-invoked rewrite.
type Command struct {
	BlockID string
	Kind    prompt.Kind

	// Selection scopes the rewrite to a span of the block. Nil means the
	// whole block.
	Selection *changes.Span

	// APIKey optionally carries the caller's own credential.
	APIKey string
}

// Result reports a finished rewrite.
type Result struct {
	ChangeID string
	Text     string

	// Canceled is set when the user aborted mid-stream. The partial text
	// stays in the document.
	Canceled bool
}

type blockState struct {
	phase    Phase
	session  *stream.Session
	canceled bool
}

// Orchestrator runs rewrites against a thread. Each block may host one
// rewrite at a time; different blocks stream independently.
type Orchestrator struct {
	opener      StreamOpener
	tracker     *changes.Tracker
	composer    *Composer
	idleTimeout time.Duration

	mu     sync.Mutex
	states map[string]*blockState
}

// NewOrchestrator creates an orchestrator. idleTimeout <= 0 disables the
// stream idle watchdog.
func NewOrchestrator(opener StreamOpener, tracker *changes.Tracker, composer *Composer, idleTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		opener:      opener,
		tracker:     tracker,
		composer:    composer,
		idleTimeout: idleTimeout,
		states:      make(map[string]*blockState),
	}
}

// Tracker exposes the change log.
func (o *Orchestrator) Tracker() *changes.Tracker { return o.tracker }

// Composer exposes the thread.
func (o *Orchestrator) Composer() *Composer { return o.composer }

// Phase reports the block's current rewrite phase.
func (o *Orchestrator) Phase(blockID string) Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.states[blockID]; ok {
		return st.phase
	}
	return PhaseIdle
}

// Cancel aborts the block's in-flight rewrite, if any. Partially-inserted
// text stays in the document; only errors trigger rollback.
func (o *Orchestrator) Cancel(blockID string) {
	o.mu.Lock()
	st, ok := o.states[blockID]
	if ok && st.session != nil {
		st.canceled = true
		st.session.Cancel()
	}
	o.mu.Unlock()
}

// Rewrite runs one rewrite command to completion. It blocks until the
// stream finishes, fails, or is canceled; callers wanting per-block
// concurrency run it in its own goroutine.
func (o *Orchestrator) Rewrite(ctx context.Context, cmd Command) (Result, error) {
	block, ok := o.composer.Block(cmd.BlockID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownBlock, cmd.BlockID)
	}
	doc := block.Doc

	fullText := doc.ToPlainText()
	span, target, wholeDoc := resolveTarget(fullText, cmd.Selection)
	if strings.TrimSpace(target) == "" {
		return Result{}, ErrEmptySelection
	}
	if !o.acquire(cmd.BlockID) {
		return Result{}, fmt.Errorf("%w: %s", changes.ErrStreamInProgress, cmd.BlockID)
	}
	defer o.clearState(cmd.BlockID)

	logging.Studio("rewrite %s: block=%s whole_doc=%v target_len=%d",
		cmd.Kind, cmd.BlockID, wholeDoc, len(target))

	// The change exists from the moment the command is accepted, before any
	// network byte moves.
	change, err := o.tracker.Begin(string(cmd.Kind), target, cmd.BlockID, span)
	if err != nil {
		return Result{}, err
	}

	userPrompt := prompt.BuildRewrite(cmd.Kind, target)
	body, err := o.opener.OpenStream(ctx, cmd.APIKey, prompt.RewriteSystemPrompt, userPrompt)
	if err != nil {
		// Rejected before any delta arrived: the document is untouched and
		// the change leaves no trace.
		o.tracker.Fail(change.ID)
		logging.StudioError("rewrite %s rejected: %v", cmd.Kind, err)
		return Result{}, err
	}

	// Splicer writes must not feed back through the editor's own change
	// callback.
	doc.BeginProgrammaticEdit()
	defer doc.EndProgrammaticEdit()

	// Clear the target span before the first delta arrives.
	if wholeDoc {
		doc.SetContent("")
	} else {
		doc.ReplaceRange(span.Start, span.End, "")
	}

	session := stream.NewSession(ctx, body, o.idleTimeout)
	o.setSession(cmd.BlockID, session)

	var accumulated string
	var insertedLen int
	raw, streamErr := session.Run(func(delta string) {
		o.tracker.AppendDelta(change.ID, delta)
		insertedLen += o.splice(doc, accumulated, delta)
		accumulated += delta
	})

	if streamErr != nil {
		if errors.Is(streamErr, context.Canceled) && o.wasCanceled(cmd.BlockID) {
			// Manual cancel: keep the partial text, close out the change
			// with what arrived so the user can still revert it.
			o.tracker.Finalize(change.ID, raw, span.Start+insertedLen)
			logging.Studio("rewrite %s canceled after %d bytes", cmd.Kind, len(raw))
			return Result{ChangeID: change.ID, Text: raw, Canceled: true}, nil
		}
		// Stream failure: the document must not stay half-applied.
		doc.SetContent(fullText)
		o.tracker.Fail(change.ID)
		logging.StudioError("rewrite %s failed mid-stream: %v", cmd.Kind, streamErr)
		return Result{}, fmt.Errorf("stream failed: %w", streamErr)
	}

	o.setPhase(cmd.BlockID, PhaseFinalizing)

	// An empty sanitized result still replaces the target: the rewrite
	// deleted it.
	sanitized := editor.SanitizeModelOutput(raw)
	caretEnd := doc.Caret()
	replaceStart := caretEnd - insertedLen
	if replaceStart < 0 {
		replaceStart = 0
	}
	doc.ReplaceRange(replaceStart, caretEnd, sanitized)
	sanLen := len([]rune(sanitized))
	doc.HighlightRange(replaceStart, replaceStart+sanLen)

	if err := o.tracker.Finalize(change.ID, sanitized, span.Start+sanLen); err != nil {
		return Result{}, err
	}
	logging.Studio("rewrite %s finalized: raw=%d sanitized=%d", cmd.Kind, len(raw), len(sanitized))
	return Result{ChangeID: change.ID, Text: sanitized}, nil
}

// AcceptChange keeps the edit in the document and drops its log entry.
func (o *Orchestrator) AcceptChange(changeID string) {
	o.tracker.Accept(changeID)
}

// RevertChange undoes a tracked edit in its block and removes it from the
// log. The restored text is re-highlighted.
func (o *Orchestrator) RevertChange(changeID string) error {
	c, ok := o.tracker.Get(changeID)
	if !ok {
		return fmt.Errorf("%w: %s", changes.ErrUnknownChange, changeID)
	}
	block, ok := o.composer.Block(c.BlockID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlock, c.BlockID)
	}

	restored, span, err := o.tracker.Revert(changeID, block.Doc.ToPlainText())
	if err != nil {
		return err
	}
	block.Doc.BeginProgrammaticEdit()
	defer block.Doc.EndProgrammaticEdit()
	block.Doc.SetContent(restored)
	block.Doc.HighlightRange(span.Start, span.End)
	return nil
}

// splice applies one delta to the document and returns how many runes it
// physically inserted.
func (o *Orchestrator) splice(doc *editor.Document, accumulated, delta string) int {
	if ClassifyDelta(accumulated, delta) == DeltaStructuralBreak {
		before := doc.Len()
		doc.InsertParagraphBreak()
		return doc.Len() - before
	}

	inserted := 0
	for i, part := range SplitBreakMarkers(delta) {
		if i > 0 {
			before := doc.Len()
			doc.InsertParagraphBreak()
			inserted += doc.Len() - before
		}
		if part == "" {
			continue
		}
		start := doc.Caret()
		doc.InsertAtCursor(part)
		doc.HighlightRange(start, doc.Caret())
		inserted += len([]rune(part))
	}
	return inserted
}

func resolveTarget(fullText string, selection *changes.Span) (changes.Span, string, bool) {
	if selection == nil {
		return changes.Span{}, fullText, true
	}
	runes := []rune(fullText)
	start, end := selection.Start, selection.End
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if end < start {
		start, end = end, start
	}
	span := changes.Span{Start: start, End: end}
	if span.IsWholeDocument() {
		// A {0,0} selection is the whole-document sentinel.
		return span, fullText, true
	}
	return span, string(runes[start:end]), false
}

// acquire claims the block for one rewrite. Fails while another rewrite owns
// it; the per-block single-flight invariant lives here (and, as a backstop,
// in the tracker's Begin).
func (o *Orchestrator) acquire(blockID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.states[blockID]; ok && st.phase != PhaseIdle {
		return false
	}
	o.states[blockID] = &blockState{phase: PhasePrompting}
	return true
}

func (o *Orchestrator) setPhase(blockID string, p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.states[blockID]; ok {
		st.phase = p
	}
}

func (o *Orchestrator) setSession(blockID string, s *stream.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.states[blockID]
	st.session = s
	st.phase = PhaseStreaming
}

func (o *Orchestrator) wasCanceled(blockID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[blockID]
	return ok && st.canceled
}

func (o *Orchestrator) clearState(blockID string) {
	o.mu.Lock()
	delete(o.states, blockID)
	o.mu.Unlock()
}
