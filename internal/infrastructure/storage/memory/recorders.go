package memory

import (
	"context"
	"sync"

	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/planned"
)

// LabelRecorder is a catalog.LabelSink that keeps requests in memory.
type LabelRecorder struct {
	mu       sync.Mutex
	requests []catalog.LabelRequest
	err      error
}

var _ catalog.LabelSink = (*LabelRecorder)(nil)

// NewLabelRecorder creates an empty recorder.
func NewLabelRecorder() *LabelRecorder {
	return &LabelRecorder{}
}

// FailWith makes subsequent requests fail with err.
func (l *LabelRecorder) FailWith(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *LabelRecorder) RequestLabel(_ context.Context, req catalog.LabelRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.requests = append(l.requests, req)
	return nil
}

// Requests returns a copy of the recorded requests.
func (l *LabelRecorder) Requests() []catalog.LabelRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]catalog.LabelRequest, len(l.requests))
	copy(out, l.requests)
	return out
}

// AuditLog is a planned.Auditor that keeps entries in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []planned.AuditEntry
}

var _ planned.Auditor = (*AuditLog)(nil)

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) Record(_ context.Context, entry planned.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// Actions returns the recorded actions in order.
func (a *AuditLog) Actions() []planned.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]planned.Action, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
