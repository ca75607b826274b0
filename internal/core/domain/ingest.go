package domain

import (
	"sort"
	"sync"
)

// IngestOutcome is the result of one idempotent write.
type IngestOutcome int

const (
	// Inserted means the activity did not exist and was stored.
	Inserted IngestOutcome = iota

	// AlreadyExists means an activity with the same key was already stored.
	// The stored (first-seen) payload is kept.
	AlreadyExists
)

func (o IngestOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// UnresolvedActorWarning is aggregated per actor for a run instead of being
// raised per event.
type UnresolvedActorWarning struct {
	Actor       Actor
	Occurrences int
}

// RunSummary is the operator-facing report of one ingestion run.
// It is safe for concurrent use by the workers of a run.
type RunSummary struct {
	mu         sync.Mutex
	inserted   int
	existing   int
	malformed  int
	unresolved map[string]*UnresolvedActorWarning
}

// NewRunSummary creates an empty summary.
func NewRunSummary() *RunSummary {
	return &RunSummary{unresolved: make(map[string]*UnresolvedActorWarning)}
}

// Record counts one successful ingestion.
func (s *RunSummary) Record(outcome IngestOutcome, unresolved *Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case Inserted:
		s.inserted++
	case AlreadyExists:
		s.existing++
	}
	if unresolved == nil {
		return
	}
	key := string(unresolved.SourceType) + ":" + NormalizeKey(unresolved.SourceType, unresolved.SourceKey)
	w, ok := s.unresolved[key]
	if !ok {
		w = &UnresolvedActorWarning{Actor: *unresolved}
		s.unresolved[key] = w
	}
	w.Occurrences++
}

// RecordMalformed counts one rejected event.
func (s *RunSummary) RecordMalformed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed++
}

// Inserted returns the number of newly stored activities.
func (s *RunSummary) Inserted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserted
}

// AlreadyExisting returns the number of events that were already stored.
func (s *RunSummary) AlreadyExisting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing
}

// Malformed returns the number of rejected events.
func (s *RunSummary) Malformed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.malformed
}

// UnresolvedEvents returns how many ingested events had an unresolved actor.
func (s *RunSummary) UnresolvedEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.unresolved {
		n += w.Occurrences
	}
	return n
}

// Warnings returns one warning per unresolved actor, most frequent first.
func (s *RunSummary) Warnings() []UnresolvedActorWarning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UnresolvedActorWarning, 0, len(s.unresolved))
	for _, w := range s.unresolved {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].Actor.String() < out[j].Actor.String()
	})
	return out
}

// Merge adds the counts of o into s.
func (s *RunSummary) Merge(o *RunSummary) {
	if o == nil || o == s {
		return
	}
	o.mu.Lock()
	inserted, existing, malformed := o.inserted, o.existing, o.malformed
	warnings := make([]UnresolvedActorWarning, 0, len(o.unresolved))
	for _, w := range o.unresolved {
		warnings = append(warnings, *w)
	}
	o.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted += inserted
	s.existing += existing
	s.malformed += malformed
	for _, w := range warnings {
		key := string(w.Actor.SourceType) + ":" + NormalizeKey(w.Actor.SourceType, w.Actor.SourceKey)
		cur, ok := s.unresolved[key]
		if !ok {
			cp := w
			s.unresolved[key] = &cp
			continue
		}
		cur.Occurrences += w.Occurrences
	}
}
