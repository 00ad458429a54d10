package kvstore

import "log"

// CloseReader aborts r's transaction and hands back its Environment
// for re-wrapping. A nil View returns a nil Environment.
func CloseReader(r *ReaderView) (*Environment, error) {
	if r == nil {
		return nil, nil
	}
	if err := r.Abort(); err != nil {
		return nil, err
	}
	env := r.env
	r.env = nil
	return env, nil
}

// AbortWriter aborts w's write and read transactions and hands back
// its Environment. A nil View returns a nil Environment.
func AbortWriter(w *WriterView) (*Environment, error) {
	if w == nil {
		return nil, nil
	}
	if err := w.Abort(); err != nil {
		return nil, err
	}
	env := w.env
	w.env = nil
	return env, nil
}

// BestEffortCommit commits w, demoting any commit failure to a logged
// warning, and hands back its Environment either way. A nil View
// returns a nil Environment. logger may be nil, in which case a
// failed commit is silently swallowed.
func BestEffortCommit(w *WriterView, logger *log.Logger) *Environment {
	if w == nil {
		return nil
	}
	if err := w.Commit(); err != nil && logger != nil {
		logger.Printf("kvstore: best-effort commit failed: %v", err)
	}
	env := w.env
	w.env = nil
	return env
}
