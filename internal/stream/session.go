package stream

import (
	"context"
	"io"
	"time"
)

// Session is one in-flight streamed rewrite: the open transport body, the
// decoder accumulating its text, and a cancel handle. A session belongs to
// exactly one rewrite invocation and is never reused.
type Session struct {
	decoder *Decoder
	body    io.ReadCloser
	cancel  context.CancelFunc
	ctx     context.Context
}

// NewSession wraps an open stream body. Canceling the returned session stops
// the decode loop and closes the body.
func NewSession(parent context.Context, body io.ReadCloser, idleTimeout time.Duration) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		decoder: NewDecoder(idleTimeout),
		body:    body,
		cancel:  cancel,
		ctx:     ctx,
	}
}

// Run decodes the body to exhaustion, forwarding deltas to onDelta. The body
// is always closed before Run returns.
func (s *Session) Run(onDelta func(delta string)) (string, error) {
	defer s.body.Close()
	return s.decoder.Run(s.ctx, s.body, onDelta)
}

// Cancel aborts the session. Safe to call concurrently with Run and after
// completion; closing the body unblocks any pending transport read.
func (s *Session) Cancel() {
	s.cancel()
	s.body.Close()
}

// Text returns the raw text accumulated so far.
func (s *Session) Text() string { return s.decoder.Text() }

// State returns the decoder state.
func (s *Session) State() State { return s.decoder.State() }
