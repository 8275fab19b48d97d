// Package pruning implements the static pruner: the three orthogonal shape
// signals (file extension, sec-fetch-dest, response content-type) that drop
// statically-irrelevant pairs before alignment, plus the oracle pre-prune and
// the user's custom filter.
package pruning

import (
	"strings"

	"reducetrace/internal/errs"
	"reducetrace/internal/httpmodel"
	"reducetrace/internal/logger"
	"reducetrace/internal/mimetable"
)

// Counts tallies, for debug logging, how many pairs were dropped by each
// combination of the three signals.
type Counts struct {
	SecFetchOnly   int
	ContentTypeOnly int
	ExtensionOnly  int
	SecAndContent  int
	SecAndExt      int
	ContentAndExt  int
	All            int
}

// StaticPruner drops pairs that are statically irrelevant to the recorded
// interaction: static assets (images, scripts, fonts, ...) identified by URL
// extension, fetch metadata, or response content-type.
type StaticPruner struct {
	log              *logger.Logger
	extensions       map[string]bool
	codes            map[string]bool
	oraclePredicate  func(*httpmodel.Pair) bool
	customFilter     func(*httpmodel.Pair) bool
}

// New builds a StaticPruner. oraclePredicate and customFilter are the
// user-supplied USE_ORACLE and CUSTOM_FILTER predicates; customFilter may be
// nil, in which case no pair is dropped by it.
func New(log *logger.Logger, oraclePredicate func(*httpmodel.Pair) bool, customFilter func(*httpmodel.Pair) bool) *StaticPruner {
	exts, codes := mimetable.PrunableExtensionsAndCodes()
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[e] = true
	}
	codeSet := make(map[string]bool, len(codes))
	for _, c := range codes {
		codeSet[c] = true
	}
	return &StaticPruner{
		log:             log,
		extensions:      extSet,
		codes:           codeSet,
		oraclePredicate: oraclePredicate,
		customFilter:    customFilter,
	}
}

// PruneByType drops pairs whose URL extension, sec-fetch-dest header, or
// response content-type matches the pruned tables. A pair survives only if
// none of the three signals fires.
func (p *StaticPruner) PruneByType(pairs []*httpmodel.Pair) ([]*httpmodel.Pair, Counts) {
	var kept []*httpmodel.Pair
	var c Counts

	for _, pair := range pairs {
		fileExt := p.matchesExtension(pair.Request.URL)
		secFetch := p.matchesSecFetchDest(pair.Request.Headers)
		contentType := p.matchesContentType(pair.Response.Headers)

		switch {
		case secFetch && contentType && fileExt:
			c.All++
		case secFetch && contentType:
			c.SecAndContent++
		case secFetch && fileExt:
			c.SecAndExt++
		case contentType && fileExt:
			c.ContentAndExt++
		case secFetch:
			c.SecFetchOnly++
		case contentType:
			c.ContentTypeOnly++
		case fileExt:
			c.ExtensionOnly++
		default:
			kept = append(kept, pair)
		}
	}

	if p.log != nil {
		p.log.Debugf("prune-by-type", "sec-fetch-dest only=%d content-type only=%d extension only=%d "+
			"sec+content=%d sec+ext=%d content+ext=%d all-three=%d",
			c.SecFetchOnly, c.ContentTypeOnly, c.ExtensionOnly, c.SecAndContent, c.SecAndExt, c.ContentAndExt, c.All)
	}
	return kept, c
}

func (p *StaticPruner) matchesExtension(url string) bool {
	lower := strings.ToLower(url)
	for ext := range p.extensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

func (p *StaticPruner) matchesSecFetchDest(headers httpmodel.Headers) bool {
	sfd, ok := headers.Get("sec-fetch-dest")
	if !ok {
		return false
	}
	switch strings.ToLower(sfd) {
	case "", "document", "empty":
		return false
	default:
		return true
	}
}

func (p *StaticPruner) matchesContentType(headers httpmodel.Headers) bool {
	ct, ok := headers.Get("content-type")
	if !ok {
		return false
	}
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return p.codes[strings.ToLower(strings.TrimSpace(ct))]
}

// PruneByCustomFilter drops every pair for which the user's custom filter
// predicate returns true.
func (p *StaticPruner) PruneByCustomFilter(pairs []*httpmodel.Pair) []*httpmodel.Pair {
	if p.customFilter == nil {
		return pairs
	}
	var kept []*httpmodel.Pair
	for _, pair := range pairs {
		if !p.customFilter(pair) {
			kept = append(kept, pair)
		}
	}
	return kept
}

// PruneByOracle drops the longest trailing suffix in which no pair satisfies
// the oracle predicate, keeping the trace up to and including the last
// oracle-eligible pair. Returns an *errs.ConfigError if the result is empty.
func (p *StaticPruner) PruneByOracle(pairs []*httpmodel.Pair) ([]*httpmodel.Pair, error) {
	pruned := pairs
	for len(pruned) > 0 && !p.oraclePredicate(pruned[len(pruned)-1]) {
		pruned = pruned[:len(pruned)-1]
	}
	if len(pruned) == 0 {
		return nil, errs.NewConfigError("trace contains no oracle pair")
	}
	return pruned, nil
}

// PruneStatically runs the full static pruning pipeline: by-type, then
// custom filter. Oracle pre-prune is run separately via PruneByOracle since
// it is evaluated per-trace, before this pipeline, per the component design.
func (p *StaticPruner) PruneStatically(pairs []*httpmodel.Pair) []*httpmodel.Pair {
	pruned, _ := p.PruneByType(pairs)
	return p.PruneByCustomFilter(pruned)
}
