// Package engine orchestrates the full trace reduction pipeline: static
// pruning of both recorded traces, enumeration of candidate alignments
// longest-first, nonce discovery and oracle-verified replay per alignment,
// dynamic pruning of the winning trace, and output abstraction.
package engine

import (
	"time"

	"reducetrace/internal/abstract"
	"reducetrace/internal/config"
	"reducetrace/internal/errs"
	"reducetrace/internal/httpmodel"
	"reducetrace/internal/logger"
	"reducetrace/internal/matching"
	"reducetrace/internal/metrics"
	"reducetrace/internal/nonces"
	"reducetrace/internal/oracle"
	"reducetrace/internal/pruner"
	"reducetrace/internal/pruning"
	"reducetrace/internal/replay"
	"reducetrace/internal/status"
)

// Engine wires every component together against one pair of recorded traces.
type Engine struct {
	log        *logger.Logger
	cfg        *config.Config
	caps       oracle.Capabilities
	metrics    *metrics.Metrics
	status     *status.Server
	static     *pruning.StaticPruner
	replayer   *replay.Replayer
	pruneStore pruner.Store
}

// New builds an Engine. statusServer, m and pruneStore may all be nil to
// disable progress reporting, metrics collection and prune-run
// checkpointing respectively.
func New(log *logger.Logger, cfg *config.Config, caps oracle.Capabilities, m *metrics.Metrics, statusServer *status.Server, pruneStore pruner.Store) *Engine {
	return &Engine{
		log:        log,
		cfg:        cfg,
		caps:       caps,
		metrics:    m,
		status:     statusServer,
		static:     pruning.New(log, caps.UseOracle, caps.CustomFilter),
		replayer:   replay.New(log),
		pruneStore: pruneStore,
	}
}

// Result is the outcome of a full reduction run: the minimal reproducing
// trace plus every nonce discovered while finding it, unfiltered.
type Result struct {
	Pairs          []*httpmodel.Pair
	RequestNonces  []nonces.Nonce
	ResponseNonces []nonces.Nonce
}

// Run executes the full pipeline against the two recorded traces.
func (e *Engine) Run(trace1, trace2 []*httpmodel.Pair) (*Result, error) {
	e.setPhase("static-prune", len(trace1), len(trace1))

	pairs1, err := e.pruneBefore(trace1)
	if err != nil {
		return nil, err
	}
	pairs2, err := e.pruneBefore(trace2)
	if err != nil {
		return nil, err
	}

	e.setPhase("matching", len(pairs1), len(pairs1))

	var first, winner *attempt
	matching.Align(pairs1, pairs2, func(a matching.Alignment) bool {
		att := e.tryAlignment(a, pairs1, pairs2)
		if first == nil {
			first = att
		}
		if att.replayOK {
			winner = att
			return false
		}
		return true
	})

	var final *attempt
	switch {
	case winner != nil:
		e.setPhase("dynamic-prune", len(winner.trace), len(winner.trace))
		replayFn := func(candidate []*httpmodel.Pair) bool {
			start := time.Now()
			ok, n, err := e.replayer.Run(candidate, winner.nonceSet, winner.oraclePair, e.oracleAdapter())
			if e.metrics != nil {
				e.metrics.DynamicPruneProbes.Add(1)
				e.metrics.RecordProbeLatency(time.Since(start))
			}
			e.recordReplayOutcome(n, err)
			return err == nil && ok
		}
		p := pruner.New(e.log, e.pruneStore, e.cfg.RunID, time.Duration(e.cfg.TimeBetweenDynamicPruningRuns)*time.Second)
		if e.log != nil {
			warned := make(map[string]bool)
			for _, n := range winner.reqNonces {
				if !warned[n.Value] {
					warned[n.Value] = true
					e.log.Warnf("engine", "request nonce %q (kind=%s) is client-minted and cannot be retrieved during replay", n.Value, n.Kind)
				}
			}
		}
		prunedTrace := p.Prune(winner.trace, winner.oraclePair, replayFn)
		if e.metrics != nil {
			e.metrics.PairsPrunedDynamically.Add(int64(len(winner.trace) - len(prunedTrace)))
		}
		final = &attempt{trace: prunedTrace, oraclePair: winner.oraclePair, reqNonces: winner.reqNonces, resNonces: winner.resNonces}
	case first != nil:
		if e.log != nil {
			e.log.Warnf("engine", "no alignment replayed successfully; falling back to the longest alignment with no dynamic pruning")
		}
		final = first
	default:
		return nil, errs.NewConfigError("no alignment found between the two traces")
	}

	e.setPhase("done", len(final.trace), len(final.trace))
	return &Result{Pairs: final.trace, RequestNonces: final.reqNonces, ResponseNonces: final.resNonces}, nil
}

// Abstract renders a Result to its output form per the configured
// abstraction and only-nonce-values settings. Nonces are first filtered
// down to only those whose origin request or response survived into the
// final pruned trace.
func (e *Engine) Abstract(res *Result) []abstract.Pair {
	a := abstract.New(e.caps.Types, e.caps.KnownStrings)

	usedRequests := make(map[*httpmodel.Request]bool, len(res.Pairs))
	usedResponses := make(map[*httpmodel.Response]bool, len(res.Pairs))
	for _, p := range res.Pairs {
		usedRequests[p.Request] = true
		usedResponses[p.Response] = true
	}

	var reps []abstract.Replacement
	if e.cfg.ShouldAbstractOutput {
		reqNonces := filterByOrigin(res.RequestNonces, usedRequests)
		resNonces := filterResponseByOrigin(res.ResponseNonces, usedResponses)
		reps = a.BuildReplacements(reqNonces, resNonces)
	}
	return a.Render(res.Pairs, reps, e.cfg.OnlyNonceValuesInOutput)
}

func filterByOrigin(ns []nonces.Nonce, used map[*httpmodel.Request]bool) []nonces.Nonce {
	var out []nonces.Nonce
	for _, n := range ns {
		if req, ok := n.Origin.(*httpmodel.Request); ok && used[req] {
			out = append(out, n)
		}
	}
	return out
}

func filterResponseByOrigin(ns []nonces.Nonce, used map[*httpmodel.Response]bool) []nonces.Nonce {
	var out []nonces.Nonce
	for _, n := range ns {
		if res, ok := n.Origin.(*httpmodel.Response); ok && used[res] {
			out = append(out, n)
		}
	}
	return out
}

// pruneBefore runs the oracle pre-prune followed by the static type/custom
// filter pipeline, in that order: a trace with no oracle-eligible pair is a
// configuration error, not an empty result.
func (e *Engine) pruneBefore(pairs []*httpmodel.Pair) ([]*httpmodel.Pair, error) {
	pruned, err := e.static.PruneByOracle(pairs)
	if err != nil {
		return nil, err
	}
	before := len(pruned)
	pruned = e.static.PruneStatically(pruned)
	if e.metrics != nil {
		e.metrics.PairsPrunedStatically.Add(int64(before - len(pruned)))
	}
	return pruned, nil
}

// attempt is the outcome of replaying one candidate alignment.
type attempt struct {
	trace      []*httpmodel.Pair
	oraclePair *httpmodel.Pair
	nonceSet   replay.ResponseNonceSet
	reqNonces  []nonces.Nonce
	resNonces  []nonces.Nonce
	replayOK   bool
}

// tryAlignment builds the A-side trace for one alignment, discovers nonces
// fresh (a Finder holds no state across alignment attempts), selects the
// last oracle-eligible pair as the oracle pair, and replays it live.
func (e *Engine) tryAlignment(a matching.Alignment, pairs1, pairs2 []*httpmodel.Pair) *attempt {
	aligned := a.Pairs(pairs1, pairs2)
	trace := make([]*httpmodel.Pair, len(aligned))
	for i, ap := range aligned {
		trace[i] = ap.A
	}

	if e.log != nil && e.cfg.ShouldPrintURLsForMatchings {
		e.logAlignmentURLs(aligned)
	}

	finder := nonces.New(e.log)
	finder.Process(aligned)

	oraclePair := lastOraclePair(trace, e.caps.UseOracle)
	att := &attempt{trace: trace, oraclePair: oraclePair, reqNonces: finder.RequestNonces, resNonces: finder.ResponseNonces}
	if oraclePair == nil {
		return att
	}

	att.nonceSet = replay.BuildResponseNonceSet(finder.ResponseNonces)
	ok, n, err := e.replayer.Run(trace, att.nonceSet, oraclePair, e.oracleAdapter())
	e.recordReplayOutcome(n, err)
	att.replayOK = err == nil && ok
	return att
}

// logAlignmentURLs prints a diff-style listing of the two sides' URLs, one
// entry per aligned position: a blank prefix when both sides have the same
// URL, otherwise a "+" line with the A-side URL followed by a "-" line with
// the B-side URL.
func (e *Engine) logAlignmentURLs(aligned []matching.AlignedPair) {
	for _, ap := range aligned {
		if ap.A.Request.URL == ap.B.Request.URL {
			e.log.Debugf("matching", "  %s", ap.A.Request.URL)
		} else {
			e.log.Debugf("matching", "+ %s", ap.A.Request.URL)
			e.log.Debugf("matching", "- %s", ap.B.Request.URL)
		}
	}
}

// recordReplayOutcome updates the replay/error counters after one Run call.
// replayedCount is the number of pairs actually issued live, which can be
// less than the candidate trace's length when Run aborted early.
func (e *Engine) recordReplayOutcome(replayedCount int, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.RequestsReplayed.Add(int64(replayedCount))
	switch err.(type) {
	case *errs.TransportError:
		e.metrics.ErrorsTransport.Add(1)
	case *errs.OracleNotUsedError:
		e.metrics.ErrorsOracleUnused.Add(1)
	}
}

func lastOraclePair(trace []*httpmodel.Pair, useOracle func(*httpmodel.Pair) bool) *httpmodel.Pair {
	if useOracle == nil {
		return nil
	}
	var last *httpmodel.Pair
	for _, p := range trace {
		if useOracle(p) {
			last = p
		}
	}
	return last
}

func (e *Engine) oracleAdapter() func(status int, headers httpmodel.Headers, body []byte) bool {
	return func(status int, headers httpmodel.Headers, body []byte) bool {
		if e.caps.Oracle == nil {
			return false
		}
		return e.caps.Oracle(&httpmodel.Response{StatusCode: status, Headers: headers, Content: body})
	}
}

func (e *Engine) setPhase(phase string, traceLength, currentLength int) {
	if e.status != nil {
		e.status.SetProgress(status.Progress{Phase: phase, TraceLength: traceLength, CurrentLength: currentLength})
	}
	if e.log != nil {
		e.log.Infof("engine", "phase=%s traceLength=%d currentLength=%d", phase, traceLength, currentLength)
	}
}
