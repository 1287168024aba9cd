// Package stream decodes the chunked event stream produced by the completion
// backend into discrete text deltas. Frames look like "data: <json>\n\n" where
// the payload is either a content envelope or the literal termination
// sentinel. Anything else on the wire is noise and is dropped.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"poststudio/internal/logging"
)

// State tracks decoder progress. A decoder is single-use: it moves from Idle
// through Receiving into exactly one terminal state.
type State int

const (
	StateIdle State = iota
	StateReceiving
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrIdleTimeout is returned when no frame arrives within the configured idle
// window. Disabled unless an idle timeout is set.
var ErrIdleTimeout = errors.New("stream idle timeout exceeded")

const terminationSentinel = "[DONE]"

// envelope covers both wire shapes we decode: the relay format used between
// our server and its clients ({"content": "..."}) and the raw backend chunk
// format (choices[0].delta.content).
type envelope struct {
	Content string `json:"content"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (e *envelope) content() string {
	if e.Content != "" {
		return e.Content
	}
	if len(e.Choices) > 0 {
		return e.Choices[0].Delta.Content
	}
	return ""
}

// Decoder frames an incoming byte stream into text deltas. Not restartable;
// Run may be called once.
type Decoder struct {
	mu          sync.Mutex
	state       State
	buffer      strings.Builder
	idleTimeout time.Duration
}

// NewDecoder creates a decoder. idleTimeout <= 0 disables the idle watchdog.
func NewDecoder(idleTimeout time.Duration) *Decoder {
	return &Decoder{state: StateIdle, idleTimeout: idleTimeout}
}

// State returns the current decoder state.
func (d *Decoder) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Text returns the text accumulated so far.
func (d *Decoder) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffer.String()
}

func (d *Decoder) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Decoder) append(delta string) {
	d.mu.Lock()
	d.buffer.WriteString(delta)
	d.mu.Unlock()
}

type readResult struct {
	line string
	err  error
}

// Run consumes r until termination, forwarding each content delta to onDelta
// in arrival order. Returns the accumulated text and a nil error on clean or
// best-effort completion (sentinel seen, or the stream closed without one).
// Context cancellation aborts the run; deltas already forwarded are not
// retracted. The caller retains ownership of r and must close it — closing is
// also what unblocks a pending read after cancellation.
func (d *Decoder) Run(ctx context.Context, r io.Reader, onDelta func(delta string)) (string, error) {
	d.setState(StateReceiving)

	// The derived context releases the reader goroutine once Run returns,
	// whatever path it took out.
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	lines := make(chan readResult)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- readResult{line: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- readResult{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	var idleC <-chan time.Time
	var idleTimer *time.Timer
	if d.idleTimeout > 0 {
		idleTimer = time.NewTimer(d.idleTimeout)
		defer idleTimer.Stop()
		idleC = idleTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			d.setState(StateAborted)
			logging.StreamDebug("decode aborted after %d bytes", d.buffer.Len())
			return d.Text(), ctx.Err()

		case <-idleC:
			d.setState(StateFailed)
			logging.StreamWarn("no frame within %v, giving up", d.idleTimeout)
			return d.Text(), ErrIdleTimeout

		case res, ok := <-lines:
			// Cancellation wins over whatever the transport produced while
			// the body was being torn down.
			if ctx.Err() != nil {
				d.setState(StateAborted)
				return d.Text(), ctx.Err()
			}
			if !ok {
				// Stream closed without the sentinel: best-effort completion
				// with whatever accumulated.
				d.setState(StateCompleted)
				return d.Text(), nil
			}
			if res.err != nil {
				d.setState(StateFailed)
				logging.StreamWarn("transport error mid-stream: %v", res.err)
				return d.Text(), fmt.Errorf("stream read: %w", res.err)
			}
			if idleTimer != nil {
				if !idleTimer.Stop() {
					<-idleTimer.C
				}
				idleTimer.Reset(d.idleTimeout)
			}

			line := strings.TrimSpace(res.line)
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == terminationSentinel {
				d.setState(StateCompleted)
				logging.Stream("decode complete, %d bytes", d.buffer.Len())
				return d.Text(), nil
			}

			var env envelope
			if err := json.Unmarshal([]byte(payload), &env); err != nil {
				logging.StreamDebug("dropping malformed frame: %q", payload)
				continue
			}
			if delta := env.content(); delta != "" {
				d.append(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
		}
	}
}
