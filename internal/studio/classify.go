// Package studio drives streamed rewrites end to end: it resolves the target
// text, opens the completion stream, splices arriving deltas into the block's
// document, and records the edit in the change log.
package studio

import (
	"strings"
)

// DeltaClass says how a streamed delta should be applied to the document.
type DeltaClass int

const (
	// DeltaLiteral is plain text, inserted as-is.
	DeltaLiteral DeltaClass = iota

	// DeltaStructuralBreak is a paragraph-break signal, not literal text.
	DeltaStructuralBreak
)

// sentenceEnders are the punctuation marks that may precede a structural
// break signal.
const sentenceEnders = ".!?"

// ClassifyDelta decides whether delta is a structural paragraph break. The
// heuristic: a delta that is exactly one space, arriving immediately after
// sentence-ending punctuation in the accumulated text, is the model pausing
// for a paragraph, not a literal space. Everything else is literal.
func ClassifyDelta(accumulated, delta string) DeltaClass {
	if delta != " " {
		return DeltaLiteral
	}
	if accumulated == "" {
		return DeltaLiteral
	}
	runes := []rune(accumulated)
	if strings.ContainsRune(sentenceEnders, runes[len(runes)-1]) {
		return DeltaStructuralBreak
	}
	return DeltaLiteral
}

// SplitBreakMarkers splits a delta on literal backslash-n markers. Each
// returned segment is literal text; a paragraph break belongs between every
// adjacent pair. A delta without markers comes back as a single segment.
func SplitBreakMarkers(delta string) []string {
	return strings.Split(delta, `\n`)
}
