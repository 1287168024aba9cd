package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, input string) ([]string, string, *Decoder, error) {
	t.Helper()
	d := NewDecoder(0)
	var deltas []string
	text, err := d.Run(context.Background(), strings.NewReader(input), func(delta string) {
		deltas = append(deltas, delta)
	})
	return deltas, text, d, err
}

func TestDecodeDeltasInArrivalOrder(t *testing.T) {
	input := "data: {\"content\":\"ab\"}\n\ndata: {\"content\":\"cd\"}\n\ndata: [DONE]\n\n"
	deltas, text, d, err := decode(t, input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"ab", "cd"}, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
	if text != "abcd" {
		t.Errorf("accumulated = %q, want %q", text, "abcd")
	}
	if d.State() != StateCompleted {
		t.Errorf("state = %v, want completed", d.State())
	}
}

func TestDecodeDropsMalformedFrame(t *testing.T) {
	input := "data: {\"content\":\"ab\"}\n\ndata: {not json at all\n\ndata: {\"content\":\"cd\"}\n\ndata: [DONE]\n\n"
	deltas, text, _, err := decode(t, input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"ab", "cd"}, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
	if text != "abcd" {
		t.Errorf("accumulated = %q, want %q", text, "abcd")
	}
}

func TestDecodeIgnoresNonDataLines(t *testing.T) {
	input := ": keepalive comment\nevent: ping\ndata: {\"content\":\"x\"}\n\ndata: [DONE]\n\n"
	deltas, _, _, err := decode(t, input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"x"}, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBackendChunkFormat(t *testing.T) {
	input := "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: {\"choices\":[{\"delta\":{}}]}\n\ndata: [DONE]\n\n"
	deltas, text, _, err := decode(t, input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"hi"}, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
	if text != "hi" {
		t.Errorf("accumulated = %q", text)
	}
}

func TestDecodeEOFWithoutSentinelCompletes(t *testing.T) {
	input := "data: {\"content\":\"partial\"}\n\n"
	_, text, d, err := decode(t, input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "partial" {
		t.Errorf("accumulated = %q, want %q", text, "partial")
	}
	if d.State() != StateCompleted {
		t.Errorf("state = %v, want completed (best-effort)", d.State())
	}
}

func TestDecodeTransportFailureKeepsPartialText(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"content\":\"kept\"}\n\n"),
		iotest.ErrReader(boom),
	)

	d := NewDecoder(0)
	var deltas []string
	text, err := d.Run(context.Background(), r, func(delta string) {
		deltas = append(deltas, delta)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
	if text != "kept" {
		t.Errorf("accumulated = %q, delivered deltas must not be retracted", text)
	}
	if diff := cmp.Diff([]string{"kept"}, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
	if d.State() != StateFailed {
		t.Errorf("state = %v, want failed", d.State())
	}
}

func TestDecodeContextCancelAborts(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDecoder(0)

	done := make(chan struct{})
	var text string
	var err error
	go func() {
		defer close(done)
		text, err = d.Run(ctx, pr, nil)
	}()

	io.WriteString(pw, "data: {\"content\":\"before\"}\n\n")
	// Let the delta land, then pull the plug.
	time.Sleep(20 * time.Millisecond)
	cancel()
	pr.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("decoder did not stop after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if text != "before" {
		t.Errorf("accumulated = %q", text)
	}
	if d.State() != StateAborted {
		t.Errorf("state = %v, want aborted", d.State())
	}
}

func TestDecodeIdleTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	defer pr.Close()

	d := NewDecoder(50 * time.Millisecond)
	_, err := d.Run(context.Background(), pr, nil)
	if !errors.Is(err, ErrIdleTimeout) {
		t.Fatalf("err = %v, want ErrIdleTimeout", err)
	}
	if d.State() != StateFailed {
		t.Errorf("state = %v, want failed", d.State())
	}
}

func TestSessionCancelStopsRun(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewSession(context.Background(), pr, 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(nil)
		done <- err
	}()

	io.WriteString(pw, "data: {\"content\":\"x\"}\n\n")
	time.Sleep(20 * time.Millisecond)
	s.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
	if s.Text() != "x" {
		t.Errorf("Text = %q, partial text must survive cancel", s.Text())
	}
	if s.State() != StateAborted {
		t.Errorf("state = %v, want aborted", s.State())
	}
}
