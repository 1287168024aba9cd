// Package changes maintains the in-memory log of AI-originated edits, from
// the moment a rewrite is accepted through finalize, accept, or revert. The
// log is scoped to one editing session; nothing here persists.
package changes

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"poststudio/internal/logging"
)

// Kind classifies what a change did to the block.
type Kind string

const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindRemoved  Kind = "removed"
)

// Span is a {start, end} rune-offset range into a block's plain-text
// projection. The zero value {0,0} is a sentinel meaning "the entire
// document".
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IsWholeDocument reports whether the span is the whole-document sentinel.
func (s Span) IsWholeDocument() bool { return s.Start == 0 && s.End == 0 }

// Change records one AI-originated edit against a block.
type Change struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	OriginalText string    `json:"originalText,omitempty"`
	NewText      string    `json:"newText"`
	Action       string    `json:"action"`
	BlockID      string    `json:"blockId"`
	Span         Span      `json:"span"`
	Streaming    bool      `json:"streaming"`
	Reverted     bool      `json:"reverted"`
	Timestamp    time.Time `json:"timestamp"`

	// wholeDoc remembers that the change began with the whole-document
	// sentinel span, since Finalize later overwrites Span.End.
	wholeDoc bool
}

var (
	// ErrStreamInProgress means the block already has an unresolved
	// streaming change; a second one may not begin.
	ErrStreamInProgress = errors.New("a streaming change is already in progress for this block")

	// ErrUnknownChange means the change id is not in the active log.
	ErrUnknownChange = errors.New("unknown change")
)

// Tracker is the active change log. Safe for concurrent use; each block may
// host at most one streaming change at a time.
type Tracker struct {
	mu      sync.Mutex
	changes []*Change
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Begin records a new streaming change for blockID and returns a snapshot of
// it. originalText may be empty for insert-only changes, which are recorded
// as "added" rather than "modified". Fails if the block already has a
// streaming change.
func (t *Tracker) Begin(action, originalText, blockID string, span Span) (Change, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.changes {
		if c.BlockID == blockID && c.Streaming {
			return Change{}, fmt.Errorf("%w: %s", ErrStreamInProgress, blockID)
		}
	}

	kind := KindModified
	if originalText == "" {
		kind = KindAdded
	}
	c := &Change{
		ID:           uuid.NewString(),
		Kind:         kind,
		OriginalText: originalText,
		Action:       action,
		BlockID:      blockID,
		Span:         span,
		Streaming:    true,
		Timestamp:    t.now(),
		wholeDoc:     span.IsWholeDocument(),
	}
	t.changes = append(t.changes, c)
	logging.StudioDebug("change %s begun: action=%s block=%s span=%+v", c.ID, action, blockID, span)
	return *c, nil
}

// AppendDelta concatenates delta onto the change's new text.
func (t *Tracker) AppendDelta(changeID, delta string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.find(changeID)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownChange, changeID)
	}
	c.NewText += delta
	return nil
}

// Finalize marks the change complete with its sanitized text and the final
// end offset of the replaced span.
func (t *Tracker) Finalize(changeID, sanitizedText string, newSpanEnd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.find(changeID)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownChange, changeID)
	}
	c.NewText = sanitizedText
	c.Streaming = false
	c.Span.End = newSpanEnd
	logging.StudioDebug("change %s finalized: new_len=%d", changeID, len(sanitizedText))
	return nil
}

// Fail drops the change from the log entirely. Failed edits leave no trace.
func (t *Tracker) Fail(changeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(changeID)
	logging.StudioDebug("change %s failed and dropped", changeID)
}

// Accept removes the change from the active log; the edit stays in the
// document.
func (t *Tracker) Accept(changeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(changeID)
}

// Revert computes the text that undoes the change against the block's
// current text and removes the change from the log. For the whole-document
// sentinel the original text is returned verbatim. The returned span covers
// the restored text, for re-highlighting.
func (t *Tracker) Revert(changeID, currentText string) (string, Span, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.find(changeID)
	if c == nil {
		return "", Span{}, fmt.Errorf("%w: %s", ErrUnknownChange, changeID)
	}
	t.remove(changeID)

	original := []rune(c.OriginalText)
	if c.wholeDoc {
		return c.OriginalText, Span{Start: 0, End: len(original)}, nil
	}

	current := []rune(currentText)
	start, end := c.Span.Start, c.Span.End
	if start > len(current) {
		start = len(current)
	}
	if end > len(current) {
		end = len(current)
	}
	restored := string(current[:start]) + c.OriginalText + string(current[end:])
	return restored, Span{Start: start, End: start + len(original)}, nil
}

// Clear empties the log unconditionally.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.changes = nil
}

// Get returns a snapshot of the change, if present.
func (t *Tracker) Get(changeID string) (Change, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c := t.find(changeID); c != nil {
		return *c, true
	}
	return Change{}, false
}

// Changes returns an ordered snapshot of the active log.
func (t *Tracker) Changes() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Change, len(t.changes))
	for i, c := range t.changes {
		out[i] = *c
	}
	return out
}

// StreamingFor reports whether blockID currently has a streaming change.
func (t *Tracker) StreamingFor(blockID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.changes {
		if c.BlockID == blockID && c.Streaming {
			return true
		}
	}
	return false
}

// Export serializes the active log as an ordered JSON array, sufficient to
// reconstruct the edit history for debugging.
func (t *Tracker) Export() ([]byte, error) {
	return json.MarshalIndent(t.Changes(), "", "  ")
}

// find and remove assume t.mu is held.

func (t *Tracker) find(changeID string) *Change {
	for _, c := range t.changes {
		if c.ID == changeID {
			return c
		}
	}
	return nil
}

func (t *Tracker) remove(changeID string) {
	for i, c := range t.changes {
		if c.ID == changeID {
			t.changes = append(t.changes[:i], t.changes[i+1:]...)
			return
		}
	}
}
