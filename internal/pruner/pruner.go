package pruner

import (
	"time"

	"reducetrace/internal/httpmodel"
	"reducetrace/internal/logger"
)

// ReplayFunc probes whether a candidate trace still replays successfully
// (the oracle holds). A transport error or OracleNotUsedError must be
// reported as a false verdict (failure), per the error semantics — a failed
// probe counts as "the removed pair was needed", not an unrelated problem.
type ReplayFunc func(candidate []*httpmodel.Pair) bool

// Pruner runs the delta-debug shrinkage loop.
type Pruner struct {
	log             *logger.Logger
	store           Store
	runID           string
	sleepBetweenRuns time.Duration
}

// New builds a Pruner. store may be NewMemoryStore() when resumability
// isn't needed; runID identifies this shrink run for checkpointing.
func New(log *logger.Logger, store Store, runID string, sleepBetweenRuns time.Duration) *Pruner {
	return &Pruner{log: log, store: store, runID: runID, sleepBetweenRuns: sleepBetweenRuns}
}

// Prune runs delta-debug shrinkage, left to right: for each pair other than
// oraclePair, try removing it and replaying the rest; keep the removal if
// the oracle still holds. Terminates after at most len(trace) probes. The
// oracle pair is never proposed for removal.
func (p *Pruner) Prune(trace []*httpmodel.Pair, oraclePair *httpmodel.Pair, replay ReplayFunc) []*httpmodel.Pair {
	prefix, rest := p.resume(trace)

	for len(rest) > 0 {
		head, tail := rest[0], rest[1:]

		worked := false
		if head != oraclePair {
			candidate := append(append([]*httpmodel.Pair{}, prefix...), tail...)
			worked = replay(candidate)
		}

		if worked {
			if p.log != nil {
				p.log.Debugf("dynamic-prune", "pruned %s", head.Request.URL)
			}
		} else {
			prefix = append(prefix, head)
			if p.log != nil {
				p.log.Debugf("dynamic-prune", "needed %s", head.Request.URL)
			}
		}
		rest = tail

		p.checkpoint(trace, prefix, rest)
		if p.sleepBetweenRuns > 0 && len(rest) > 0 {
			time.Sleep(p.sleepBetweenRuns)
		}
	}

	return prefix
}

// resume loads a prior checkpoint for this run ID, if any, translating its
// stored indices back into pair slices against trace. Starts fresh if no
// checkpoint exists or any stored index is out of range for trace. The
// checkpoint does not record which trace it was taken against, so one whose
// indices all fall within trace is resumed as-is.
func (p *Pruner) resume(trace []*httpmodel.Pair) (prefix, rest []*httpmodel.Pair) {
	if p.store == nil {
		return nil, trace
	}
	cp, ok := p.store.Get(p.runID)
	if !ok {
		return nil, trace
	}
	for _, i := range cp.PrefixIndexes {
		if i < 0 || i >= len(trace) {
			return nil, trace
		}
		prefix = append(prefix, trace[i])
	}
	for _, i := range cp.RestIndexes {
		if i < 0 || i >= len(trace) {
			return nil, trace
		}
		rest = append(rest, trace[i])
	}
	return prefix, rest
}

func (p *Pruner) checkpoint(trace, prefix, rest []*httpmodel.Pair) {
	if p.store == nil {
		return
	}
	p.store.Set(p.runID, Checkpoint{
		PrefixIndexes: indexesOf(trace, prefix),
		RestIndexes:   indexesOf(trace, rest),
	})
}

func indexesOf(trace, subset []*httpmodel.Pair) []int {
	pos := make(map[*httpmodel.Pair]int, len(trace))
	for i, p := range trace {
		pos[p] = i
	}
	out := make([]int, 0, len(subset))
	for _, p := range subset {
		out = append(out, pos[p])
	}
	return out
}
