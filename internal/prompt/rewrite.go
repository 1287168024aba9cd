// Package prompt builds the instruction strings sent to the completion
// backend. Everything here is a pure function of its inputs.
package prompt

import "fmt"

// Kind identifies one of the fixed rewrite instructions.
type Kind string

const (
	KindImprove   Kind = "improve"
	KindExtend    Kind = "extend"
	KindShorten   Kind = "shorten"
	KindHook      Kind = "hook"
	KindPunchy    Kind = "punchy"
	KindClarify   Kind = "clarify"
	KindFormalize Kind = "formalize"
	KindCasualize Kind = "casualize"
)

// Kinds lists all rewrite kinds in menu order.
var Kinds = []Kind{
	KindImprove, KindExtend, KindShorten, KindHook,
	KindPunchy, KindClarify, KindFormalize, KindCasualize,
}

// CompletionSentinel is appended by the model to mark clean completion and is
// stripped during sanitization.
const CompletionSentinel = "*"

// Directive returns the natural-language instruction for a rewrite kind.
// Unrecognized kinds fall back to a generic improve directive.
func Directive(kind Kind) string {
	switch kind {
	case KindImprove:
		return "Improve clarity, flow, and engagement. Keep original meaning and tone. Make it punchy and compelling for X. Keep within 240-280 characters if possible."
	case KindExtend:
		return "Extend and enrich the post with one or two crisp details or examples. Keep it engaging and skimmable. Aim for 240-280 characters."
	case KindShorten:
		return "Make it concise and impactful under 180 characters. Preserve the key message and make it scroll-stopping."
	case KindHook:
		return "Rewrite to maximize the opening hook. Lead with tension, curiosity, or a bold claim. One strong opening line."
	case KindPunchy:
		return "Increase energy, remove filler, choose vivid words. Keep it crisp and punchy for X feed."
	case KindClarify:
		return "Rewrite to be simpler and clearer for a broad audience. Remove jargon and reduce clauses."
	case KindFormalize:
		return "Rewrite in a more formal, professional tone while staying concise and engaging for X."
	case KindCasualize:
		return "Rewrite in a more casual, friendly tone with light personality. Avoid slang overload."
	default:
		return "Improve clarity and engagement; keep it concise for X."
	}
}

// BuildRewrite produces the full rewrite instruction for a source text.
// The formatting rules are fixed: no hashtags, at most one emoji, deliberate
// line breaks, and a trailing sentinel so the decoder can detect a clean end.
func BuildRewrite(kind Kind, source string) string {
	return fmt.Sprintf(`You are editing a tweet for X performance.

<general_rules>
- Output ONLY the final tweet text. Do not explain anything.
- No hashtags or links unless explicitly present in the original. Max 1 emoji.
- Use short lines and deliberate line breaks for skimmability (use \n).
- Keep the user's tone and meaning intact; raise hook strength and clarity.
- 6th-grade reading level language.
</general_rules>

<instruction>
%s
</instruction>

<original>
%s
</original>

Return ONLY the rewritten tweet text and append a trailing %s.`, Directive(kind), source, CompletionSentinel)
}

// RewriteSystemPrompt is the system message used alongside BuildRewrite.
const RewriteSystemPrompt = "You are a helpful assistant that rewrites content for social media. Respond with only the rewritten content, no explanations or commentary."
