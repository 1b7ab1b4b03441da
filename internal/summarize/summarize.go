// Package summarize defines the narrative-summary boundary. The engine
// treats a Summarizer as an opaque function with a timeout and error
// contract; implementations are the offline outline builder and the
// LLM-backed client.
package summarize

import (
	"context"
	"time"

	"symposium/internal/roster"
)

// Request carries everything a summarizer may use for one session.
type Request struct {
	Session   roster.Session
	Texts     []string // matched artifact texts, in match order
	Attendees []roster.Attendee
	Talks     []roster.LightningTalk // talks on this session's track
}

// Summarizer produces a narrative summary for one session.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, req Request) (string, error)
}

// CallOptions bounds one summarizer call: a per-attempt timeout and a
// retry budget with exponential backoff.
type CallOptions struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration // initial; doubles per attempt
}

// Call invokes the summarizer with timeout and bounded retries.
// Exhausting the budget returns the last error; the caller records it
// as a per-session flag and moves on.
func Call(ctx context.Context, s Summarizer, req Request, opt CallOptions) (string, error) {
	backoff := opt.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= opt.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if opt.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opt.Timeout)
		}
		text, err := s.Summarize(callCtx, req)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
