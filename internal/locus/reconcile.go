package locus

import (
	"github.com/bhandras/delight/rtc/internal/metrics"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

// Outcome classifies what Reconcile did with an incoming snapshot.
type Outcome string

const (
	// OutcomeReplaced means a full snapshot replaced the current one.
	OutcomeReplaced Outcome = "replaced"
	// OutcomeApplied means a delta was merged into the current snapshot.
	OutcomeApplied Outcome = "applied"
	// OutcomeInvalid means the snapshot lacked mandatory fields.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeStale means the delta was already reflected in the current
	// snapshot.
	OutcomeStale Outcome = "stale"
	// OutcomeGap means the delta was computed against state this client
	// has not seen; a resync is required.
	OutcomeGap Outcome = "gap"
)

// Reconcile returns the snapshot that should replace old after receiving
// incoming, or nil when incoming must be dropped. onInvalid is called once
// when a sequence gap requires a full resync.
func Reconcile(old, incoming *Model, onInvalid func()) *Model {
	next, outcome := Classify(old, incoming)
	metrics.LocusUpdate(string(outcome))
	switch outcome {
	case OutcomeGap:
		logger.Infof("[locus] sequence gap on %s, resyncing", incoming.URL)
		metrics.LocusResync()
		if onInvalid != nil {
			onInvalid()
		}
	case OutcomeInvalid:
		logger.Debugf("[locus] dropping invalid snapshot")
	case OutcomeStale:
		logger.Tracef("[locus] dropping stale delta for %s", incoming.URL)
	}
	return next
}

// Classify is Reconcile without side effects.
func Classify(old, incoming *Model) (*Model, Outcome) {
	if !incoming.Valid() {
		return nil, OutcomeInvalid
	}

	var next *Model
	if incoming.IsFullDTO() {
		next = incoming.Clone()
	} else {
		if old == nil {
			return nil, OutcomeGap
		}
		if !old.Sequence.Empty() && !incoming.Sequence.Empty() {
			if o := old.Sequence.Compare(incoming.Sequence); o == Equal || o == Greater {
				return nil, OutcomeStale
			}
		}
		if old.Sequence.Compare(incoming.BaseSequence) != Equal {
			return nil, OutcomeGap
		}
		next = ApplyDelta(old, incoming)
	}

	if old != nil && len(next.MediaConnections) == 0 && len(old.MediaConnections) > 0 {
		next.MediaConnections = append([]MediaConnection(nil), old.MediaConnections...)
	}

	if incoming.IsFullDTO() {
		return next, OutcomeReplaced
	}
	return next, OutcomeApplied
}
