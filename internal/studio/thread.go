package studio

import (
	"regexp"
	"strings"
)

// threadSeparator matches a line of three or more dashes between tweets,
// the format the assistant uses when it generates a thread.
var threadSeparator = regexp.MustCompile(`\n\s*-{3,}\s*\n`)

// ParseThread splits generated content into individual tweet texts. Content
// without a separator line comes back as a single tweet; blank input yields
// nothing.
func ParseThread(content string) []string {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}

	var tweets []string
	for _, part := range threadSeparator.Split(text, -1) {
		if p := strings.TrimSpace(part); p != "" {
			tweets = append(tweets, p)
		}
	}
	if len(tweets) > 1 {
		return tweets
	}
	return []string{text}
}

// IsThread reports whether content looks like a multi-tweet thread. Content
// too short to hold more than one tweet is never a thread.
func IsThread(content string) bool {
	if len([]rune(strings.TrimSpace(content))) < 50 {
		return false
	}
	return len(ParseThread(content)) > 1
}

// LoadThread replaces the thread's blocks with one block per parsed tweet
// and returns the new blocks. Content without a separator loads into a
// single block; blank content is a no-op so at least one block survives.
func (c *Composer) LoadThread(content string) []*Block {
	tweets := ParseThread(content)
	if len(tweets) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blocks {
		b.Doc.SetMounted(false)
	}
	blocks := make([]*Block, 0, len(tweets))
	for _, tweet := range tweets {
		blocks = append(blocks, newBlock(tweet))
	}
	c.blocks = blocks
	return blocks
}
