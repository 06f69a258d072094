package analysis

import (
	"context"
	"sync"
)

// Analyzer runs one submission to completion.
type Analyzer interface {
	Analyze(ctx context.Context, sub Submission) (*Result, error)
}

// Outcome is delivered once per Submit call.
type Outcome struct {
	Result *Result
	Err    error
}

// Session keeps the result of the latest successful submission. It is the
// only writer of that result: a run commits only if it is still the newest
// submission and was not abandoned, and failures leave the previous result
// in place.
type Session struct {
	analyzer Analyzer

	mu      sync.Mutex
	current *Result
	seq     uint64
	cancel  context.CancelFunc
}

func NewSession(analyzer Analyzer) *Session {
	return &Session{analyzer: analyzer}
}

// Submit starts sub in the background and returns immediately. Any run still
// in flight is cancelled and its result will be discarded.
func (s *Session) Submit(ctx context.Context, sub Submission) <-chan Outcome {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		defer cancel()

		result, err := s.analyzer.Analyze(runCtx, sub)
		if err != nil {
			s.finish(seq)
			out <- Outcome{Err: err}
			return
		}

		if err := s.commit(runCtx, seq, result); err != nil {
			out <- Outcome{Err: err}
			return
		}

		out <- Outcome{Result: result}
	}()

	return out
}

// Abandon cancels the in-flight run, if any. Its result will not be committed.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
}

// Current returns the last committed result or nil.
func (s *Session) Current() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) commit(ctx context.Context, seq uint64, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		return ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.current = result
	s.cancel = nil
	return nil
}

func (s *Session) finish(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq == s.seq {
		s.cancel = nil
	}
}
