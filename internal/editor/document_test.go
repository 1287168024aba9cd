package editor

import (
	"testing"
)

func TestInsertAtCursor(t *testing.T) {
	d := NewDocument("hello world")
	d.SetCaret(5)
	d.InsertAtCursor(" there")
	if got := d.ToPlainText(); got != "hello there world" {
		t.Fatalf("text = %q", got)
	}
	if d.Caret() != 11 {
		t.Fatalf("caret = %d, want 11 (after inserted text)", d.Caret())
	}
}

func TestInsertParagraphBreak(t *testing.T) {
	d := NewDocument("onetwo")
	d.SetCaret(3)
	d.InsertParagraphBreak()
	if got := d.ToPlainText(); got != "one\n\ntwo" {
		t.Fatalf("text = %q", got)
	}
}

func TestReplaceRange(t *testing.T) {
	d := NewDocument("hello world")
	d.ReplaceRange(6, 11, "there")
	if got := d.ToPlainText(); got != "hello there" {
		t.Fatalf("text = %q", got)
	}
	if d.Caret() != 11 {
		t.Fatalf("caret = %d, want end of replacement", d.Caret())
	}

	// Out-of-range offsets clamp instead of panicking.
	d.ReplaceRange(6, 99, "you")
	if got := d.ToPlainText(); got != "hello you" {
		t.Fatalf("text = %q", got)
	}
}

func TestReplaceRangeEmptyTextDeletes(t *testing.T) {
	d := NewDocument("hello world")
	d.ReplaceRange(5, 11, "")
	if got := d.ToPlainText(); got != "hello" {
		t.Fatalf("text = %q", got)
	}
}

func TestHighlightRangeLeavesCaretAtEnd(t *testing.T) {
	d := NewDocument("hello world")
	d.SetCaret(0)
	d.HighlightRange(6, 11)
	if d.Caret() != 11 {
		t.Fatalf("caret = %d, want 11", d.Caret())
	}
	hl := d.Highlights()
	if len(hl) != 1 || hl[0] != (Highlight{Start: 6, End: 11}) {
		t.Fatalf("highlights = %+v", hl)
	}
}

func TestUnmountedDocumentNoOps(t *testing.T) {
	d := NewDocument("keep me")
	d.SetMounted(false)

	d.InsertAtCursor("x")
	d.InsertParagraphBreak()
	d.ReplaceRange(0, 4, "drop")
	d.SetContent("gone")
	d.HighlightRange(0, 4)

	if got := d.ToPlainText(); got != "keep me" {
		t.Fatalf("unmounted document mutated: %q", got)
	}
	if len(d.Highlights()) != 0 {
		t.Fatal("unmounted document gained highlights")
	}
}

func TestProgrammaticEditSuppressesNotification(t *testing.T) {
	d := NewDocument("")
	var notified []string
	d.SetOnChange(func(plain string) { notified = append(notified, plain) })

	d.BeginProgrammaticEdit()
	d.InsertAtCursor("silent")
	d.EndProgrammaticEdit()
	if len(notified) != 0 {
		t.Fatalf("notifications during programmatic edit: %v", notified)
	}

	d.InsertAtCursor("!")
	if len(notified) != 1 || notified[0] != "silent!" {
		t.Fatalf("notifications = %v, want one with full text", notified)
	}
}

func TestProgrammaticEditGuardsNest(t *testing.T) {
	d := NewDocument("")
	count := 0
	d.SetOnChange(func(string) { count++ })

	d.BeginProgrammaticEdit()
	d.BeginProgrammaticEdit()
	d.EndProgrammaticEdit()
	d.InsertAtCursor("still guarded")
	d.EndProgrammaticEdit()
	d.InsertAtCursor("visible")

	if count != 1 {
		t.Fatalf("notifications = %d, want 1 (only after all guards released)", count)
	}
}

func TestSelectRange(t *testing.T) {
	d := NewDocument("hello world")
	d.SelectRange(6, 11)
	start, end := d.Selection()
	if start != 6 || end != 11 {
		t.Fatalf("selection = {%d %d}", start, end)
	}
	if d.Caret() != 11 {
		t.Fatalf("caret = %d, want selection end", d.Caret())
	}
}

func TestSetContentResetsState(t *testing.T) {
	d := NewDocument("old")
	d.HighlightRange(0, 3)
	d.SelectRange(0, 3)

	d.SetContent("brand new")
	if got := d.ToPlainText(); got != "brand new" {
		t.Fatalf("text = %q", got)
	}
	if len(d.Highlights()) != 0 {
		t.Fatal("highlights survived SetContent")
	}
	if d.Caret() != 9 {
		t.Fatalf("caret = %d, want end of new content", d.Caret())
	}
}

func TestRuneOffsets(t *testing.T) {
	d := NewDocument("héllo")
	d.ReplaceRange(1, 2, "e")
	if got := d.ToPlainText(); got != "hello" {
		t.Fatalf("text = %q, offsets must be rune-based", got)
	}
}

func TestHTMLRoundTrip(t *testing.T) {
	plain := "first line\nsecond line\n\nnew paragraph"
	markup := ToHTML(plain)
	if markup != "<p>first line<br>second line</p><p>new paragraph</p>" {
		t.Fatalf("ToHTML = %q", markup)
	}

	back, err := FromHTML(markup)
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if back != plain {
		t.Fatalf("round trip = %q, want %q", back, plain)
	}
}

func TestFromHTMLDropsUnknownTags(t *testing.T) {
	got, err := FromHTML(`<div>hello <strong>bold</strong> world</div>`)
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if got != "hello bold world" {
		t.Fatalf("plain = %q", got)
	}
}

func TestToHTMLEscapes(t *testing.T) {
	if got := ToHTML("a < b & c"); got != "<p>a &lt; b &amp; c</p>" {
		t.Fatalf("ToHTML = %q", got)
	}
}
