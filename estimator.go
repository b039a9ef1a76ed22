// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "math"

// Estimator runs the top-level training procedure of spec.md §4.4 over a
// fully populated Trie: it walks n-gram orders 1..order strictly in order,
// calling into the Discount family for per-level constants and the
// Normaliser for back-off weights, then finishes with one Fix-up pass.
type Estimator struct {
	trie *Trie
	disc *Discount
}

// NewEstimator builds an Estimator over t using disc for discounting.
func NewEstimator(t *Trie, disc *Discount) *Estimator {
	return &Estimator{trie: t, disc: disc}
}

// StatusFunc reports training progress 0..100, monotonically, on coarse
// per-level boundaries (spec.md §5). Returning false asks Train to stop
// after finishing the current level; Train always completes fix-up before
// honouring a stop request.
type StatusFunc func(percent uint8) bool

// Train executes the estimator over every level of the trie, in order.
// Returns a *EngineError of KindFatal if a required discount could not be
// estimated at some level and that level is not a no-discount level (spec.md
// §4.4, §7). A nil status is allowed.
func (e *Estimator) Train(status StatusFunc) error {
	t := e.trie
	if t.options.Has(OptNotTrain) {
		t.debugf("train: skipped, load-only mode")
		if status != nil {
			status(100)
		}
		return nil
	}
	stopped := false
	for g := 1; g <= t.order && !stopped; g++ {
		if status != nil {
			pct := uint8(100 * (g - 1) / t.order)
			if !status(pct) {
				stopped = true
			}
		}

		if !e.disc.NoDiscount(g) {
			e.disc.Prepare(t, g)
			if !e.disc.Estimate(t, g) {
				return newEngineErrorf(KindFatal, "Train",
					"discount estimation failed at level %d", g)
			}
		}

		for _, hIdx := range t.LevelContexts(g) {
			e.estimateContext(g, hIdx)
		}

		if g == 1 {
			e.trie.Distribute()
		} else {
			for _, hIdx := range t.LevelContexts(g) {
				t.computeBackoff(hIdx)
			}
		}
	}

	t.FixupProbabilities()
	t.invalidateCache()

	if status != nil {
		status(100)
	}
	return nil
}

// estimateContext runs the probability loop for one context h at depth
// g-1, restarting up to twice under the Stolcke escape condition (spec.md
// §4.4 step 2, §9 open question: a third restart is not attempted — the
// last computed weights are kept and a warning is logged instead). The
// unigram level (g==1) never restarts: there is no lower order to fall
// back into, so the escape condition does not apply there.
func (e *Estimator) estimateContext(g int, hIdx nodeIndex) {
	t := e.trie
	total, observed, nGE2, nGE3 := t.contextStats(hIdx)
	if observed == 0 {
		return
	}

	interpolating := g > 1 && t.options.Has(OptInterpolate)
	noDiscount := e.disc.NoDiscount(g)

	if g == 1 {
		e.probabilityLoop(g, hIdx, total, observed, 0, false)
		return
	}

	for attempt := 0; ; attempt++ {
		lambda := 0.0
		if interpolating {
			lambda = e.disc.LowerWeight(g, total, observed, nGE2, nGE3)
		}
		sumP := e.probabilityLoop(g, hIdx, total, observed, lambda, interpolating)

		if noDiscount {
			return
		}
		vocabOK := observed < t.VocabSize()
		if !(vocabOK && sumP > 1-epsilon) {
			return
		}
		if attempt >= 2 {
			t.warnf("estimate: context %v failed to converge after 2 retries; keeping last weights", t.pathOf(hIdx))
			return
		}
		if interpolating {
			interpolating = false
			continue
		}
		total++
	}
}

// probabilityLoop computes, for every valid child of h, the discounted
// (and optionally interpolated) probability, and returns the sum in linear
// space so the caller can evaluate the escape condition.
func (e *Estimator) probabilityLoop(g int, hIdx nodeIndex, total uint64, observed int, lambda float64, interpolating bool) float64 {
	t := e.trie
	h := t.at(hIdx)

	var tail []WordID
	if interpolating {
		tail = t.pathOf(hIdx)
		if len(tail) > 0 {
			tail = tail[1:]
		}
	}

	minOc := e.disc.MinCount(g)
	if t.options.Has(OptAllGrams) {
		minOc = 1
	}

	sum := 0.0
	for idw, cIdx := range h.children {
		c := t.at(cIdx)
		if t.isNonEvent(idw) {
			c.weight = negInf
			continue
		}
		if c.oc == 0 {
			continue
		}
		if c.oc < minOc {
			c.weight = negInf
			continue
		}

		disc := e.disc.DiscountFactor(g, c.oc, total, observed)
		p := disc * float64(c.oc) / float64(total)
		if interpolating {
			p += lambda * pow10(t.lowerProb(tail, idw))
		}

		if p <= 0 {
			c.weight = negInf
			continue
		}
		c.weight = math.Log10(p)
		sum += p
	}
	return sum
}
