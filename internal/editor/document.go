// Package editor holds the rich-text document model that streamed edits are
// spliced into: plain text plus transient highlight spans, a caret, and a
// mounted flag. All offsets are rune offsets into the plain-text projection.
package editor

import (
	"sync"
)

// Highlight marks a span of AI-written text for transient visual emphasis.
type Highlight struct {
	Start int
	End   int
}

// Document is one block's editable text. Mutating operations no-op silently
// when the document is unmounted (the user navigated away mid-stream); a
// stream must be able to keep running against a torn-down target without
// raising.
type Document struct {
	mu         sync.Mutex
	text       []rune
	caret      int
	selStart   int
	selEnd     int
	highlights []Highlight
	mounted    bool

	// programmatic counts nested BeginProgrammaticEdit guards; while
	// positive, onChange is suppressed so the editor's own change callback
	// does not observe splicer writes.
	programmatic int
	onChange     func(plain string)
}

// NewDocument creates a mounted document with the given initial text.
func NewDocument(text string) *Document {
	d := &Document{mounted: true}
	d.text = []rune(text)
	d.caret = len(d.text)
	return d
}

// SetOnChange registers the change-notification callback. It fires after
// every mutation that is not wrapped in a programmatic-edit guard.
func (d *Document) SetOnChange(fn func(plain string)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// SetMounted flips the mounted flag. Unmounting makes every mutating
// operation a silent no-op.
func (d *Document) SetMounted(mounted bool) {
	d.mu.Lock()
	d.mounted = mounted
	d.mu.Unlock()
}

// Mounted reports whether the document accepts mutations.
func (d *Document) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

// BeginProgrammaticEdit suppresses change notifications until the matching
// EndProgrammaticEdit. Guards nest.
func (d *Document) BeginProgrammaticEdit() {
	d.mu.Lock()
	d.programmatic++
	d.mu.Unlock()
}

// EndProgrammaticEdit releases one guard.
func (d *Document) EndProgrammaticEdit() {
	d.mu.Lock()
	if d.programmatic > 0 {
		d.programmatic--
	}
	d.mu.Unlock()
}

// InsertAtCursor inserts literal text at the caret and advances the caret
// past it.
func (d *Document) InsertAtCursor(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return
	}
	d.insertLocked([]rune(text))
	d.notifyLocked()
}

// InsertParagraphBreak inserts a structural paragraph break at the caret.
func (d *Document) InsertParagraphBreak() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return
	}
	d.insertLocked([]rune("\n\n"))
	d.notifyLocked()
}

// ReplaceRange deletes [start, end) and inserts text in its place, leaving
// the caret after the inserted text. Offsets are clamped to the document.
func (d *Document) ReplaceRange(start, end int, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return
	}
	start, end = d.clampLocked(start), d.clampLocked(end)
	if end < start {
		start, end = end, start
	}
	insert := []rune(text)
	d.text = append(d.text[:start], append(insert, d.text[end:]...)...)
	d.caret = start + len(insert)
	d.highlights = nil
	d.notifyLocked()
}

// HighlightRange marks [start, end) as AI-written and leaves the caret at
// end.
func (d *Document) HighlightRange(start, end int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return
	}
	start, end = d.clampLocked(start), d.clampLocked(end)
	if end < start {
		start, end = end, start
	}
	d.highlights = append(d.highlights, Highlight{Start: start, End: end})
	d.caret = end
}

// ClearHighlights drops all transient highlight spans.
func (d *Document) ClearHighlights() {
	d.mu.Lock()
	d.highlights = nil
	d.mu.Unlock()
}

// Highlights returns a snapshot of the current highlight spans.
func (d *Document) Highlights() []Highlight {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Highlight, len(d.highlights))
	copy(out, d.highlights)
	return out
}

// SelectRange sets the active selection and moves the caret to its end.
func (d *Document) SelectRange(start, end int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return
	}
	start, end = d.clampLocked(start), d.clampLocked(end)
	if end < start {
		start, end = end, start
	}
	d.selStart, d.selEnd = start, end
	d.caret = end
}

// Selection returns the active selection range.
func (d *Document) Selection() (start, end int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selStart, d.selEnd
}

// SetContent replaces the entire document text, dropping highlights and
// selection. The caret lands at the end.
func (d *Document) SetContent(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return
	}
	d.text = []rune(text)
	d.caret = len(d.text)
	d.selStart, d.selEnd = 0, 0
	d.highlights = nil
	d.notifyLocked()
}

// Caret returns the caret position.
func (d *Document) Caret() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caret
}

// SetCaret moves the caret, clamped to the document.
func (d *Document) SetCaret(pos int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caret = d.clampLocked(pos)
}

// ToPlainText projects the rich representation back to a flat string.
// Readable even when unmounted.
func (d *Document) ToPlainText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.text)
}

// Len returns the document length in runes.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.text)
}

func (d *Document) insertLocked(insert []rune) {
	at := d.clampLocked(d.caret)
	d.text = append(d.text[:at], append(insert, d.text[at:]...)...)
	d.caret = at + len(insert)
}

func (d *Document) clampLocked(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(d.text) {
		return len(d.text)
	}
	return pos
}

func (d *Document) notifyLocked() {
	if d.programmatic > 0 || d.onChange == nil {
		return
	}
	fn, plain := d.onChange, string(d.text)
	// Deliver outside the lock so the callback may call back into the
	// document.
	d.mu.Unlock()
	fn(plain)
	d.mu.Lock()
}
