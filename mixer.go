// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "math"

// Repair re-runs the Back-off Normaliser (including the root-level residual
// distribution) and the Fix-up pass over t without re-discounting (spec.md
// §4.8): every mixing operation ends by calling this, since mixing can
// change which (h,w) entries exist but never wants to re-estimate from raw
// counts.
func Repair(t *Trie) {
	t.Distribute()
	for d := 1; d < t.order; d++ {
		for _, hIdx := range t.LevelContexts(d + 1) {
			t.computeBackoff(hIdx)
		}
	}
	t.FixupProbabilities()
	t.invalidateCache()
}

// newMixResult allocates the output trie for a two- or many-model mix:
// same order as the widest input, same options/logger/wordOf as the first.
func newMixResult(order int, like *Trie) (*Trie, error) {
	return NewTrie(order, like.options, like.logger, like.wordOf)
}

func maxOrder(tries ...*Trie) int {
	m := 0
	for _, tr := range tries {
		if tr.order > m {
			m = tr.order
		}
	}
	return m
}

// LinearMix combines a and b into a new trie, n-gram by n-gram: where both
// models define an entry, `p_new = log10(lambda*10^pA + (1-lambda)*10^pB)`;
// where only one does, the other's whole-model back-off probability fills
// in for the missing side (spec.md §4.8).
func LinearMix(a, b *Trie, lambda float64) (*Trie, error) {
	c, err := newMixResult(maxOrder(a, b), a)
	if err != nil {
		return nil, err
	}

	mixInto := func(src, other *Trie, srcIsA bool) {
		for g := 1; g <= src.order; g++ {
			for _, idx := range src.NodesAtDepth(g) {
				n := src.at(idx)
				if !n.isValidProb() {
					continue
				}
				seq := src.pathOf(idx)
				if !srcIsA {
					if _, ok := a.lookupPath(seq); ok {
						continue // already emitted while walking a
					}
				}
				pSrc := n.weight
				pOther := other.ProbOf(seq)
				var pNew float64
				if srcIsA {
					pNew = math.Log10(lambda*pow10(pSrc) + (1-lambda)*pow10(pOther))
				} else {
					pNew = math.Log10(lambda*pow10(pOther) + (1-lambda)*pow10(pSrc))
				}
				c.InsertARPA(seq, pNew, 0)
			}
		}
	}

	mixInto(a, b, true)
	mixInto(b, a, false)

	Repair(c)
	return c, nil
}

// BackwardMix is LinearMix with orders visited from the maximal order down
// to 1 instead of ascending (spec.md §4.8). Whole-sequence lookups already
// fall back through suffixes via ProbOf, so the only observable difference
// from LinearMix is iteration order; it is kept distinct because the
// source treats them as separate entry points and callers may rely on that
// (e.g. preferring this form when b carries longer n-grams than a).
func BackwardMix(a, b *Trie, lambda float64) (*Trie, error) {
	order := maxOrder(a, b)
	c, err := newMixResult(order, a)
	if err != nil {
		return nil, err
	}

	for g := order; g >= 1; g-- {
		if g <= a.order {
			for _, idx := range a.NodesAtDepth(g) {
				n := a.at(idx)
				if !n.isValidProb() {
					continue
				}
				seq := a.pathOf(idx)
				pNew := math.Log10(lambda*pow10(n.weight) + (1-lambda)*pow10(b.ProbOf(seq)))
				c.InsertARPA(seq, pNew, 0)
			}
		}
		if g <= b.order {
			for _, idx := range b.NodesAtDepth(g) {
				n := b.at(idx)
				if !n.isValidProb() {
					continue
				}
				seq := b.pathOf(idx)
				if _, ok := a.lookupPath(seq); ok {
					continue
				}
				pNew := math.Log10(lambda*pow10(a.ProbOf(seq)) + (1-lambda)*pow10(n.weight))
				c.InsertARPA(seq, pNew, 0)
			}
		}
	}

	Repair(c)
	return c, nil
}

// seqKey renders a word-id sequence into a comparable map key.
func seqKey(seq []WordID) string {
	buf := make([]byte, 0, len(seq)*5)
	for _, id := range seq {
		buf = append(buf, byte(id), byte(id>>8), byte(id>>16), byte(id>>24), '/')
	}
	return string(buf)
}

// LogLinearMix combines K fully estimated models with weights lambdas
// (which should sum to 1) by averaging log-probabilities rather than
// linear ones, then renormalising per context over the primary model's
// (models[0]) finite-weight words (spec.md §4.8).
func LogLinearMix(models []*Trie, lambdas []float64) (*Trie, error) {
	order := maxOrder(models...)
	c, err := newMixResult(order, models[0])
	if err != nil {
		return nil, err
	}

	type entry struct {
		seq      []WordID
		combined float64
	}
	seen := make(map[string]bool)
	byContext := make(map[string][]entry)

	for _, m := range models {
		for g := 1; g <= m.order; g++ {
			for _, idx := range m.NodesAtDepth(g) {
				n := m.at(idx)
				if !n.isValidProb() {
					continue
				}
				seq := m.pathOf(idx)
				key := seqKey(seq)
				if seen[key] {
					continue
				}
				seen[key] = true

				combined := 0.0
				for i, mm := range models {
					combined += lambdas[i] * mm.ProbOf(seq)
				}
				hKey := seqKey(seq[:len(seq)-1])
				byContext[hKey] = append(byContext[hKey], entry{seq: seq, combined: combined})
			}
		}
	}

	for _, entries := range byContext {
		var z float64
		for _, e := range entries {
			if primIdx, ok := models[0].lookupPath(e.seq); ok && models[0].at(primIdx).isValidProb() {
				z += pow10(e.combined)
			}
		}
		logZ := negInf
		if z > 0 {
			logZ = math.Log10(z)
		}
		for _, e := range entries {
			c.InsertARPA(e.seq, e.combined-logZ, 0)
		}
	}

	Repair(c)
	return c, nil
}

// BayesianMix combines K models with prior weights lambdas, weighting each
// model's contribution per history by a posterior derived from how well
// that model predicted the preceding `length` words at scale `scale`
// (spec.md §4.8). If every model's posterior underflows to zero, the prior
// weights are used unchanged.
func BayesianMix(models []*Trie, lambdas []float64, length int, scale float64) (*Trie, error) {
	order := maxOrder(models...)
	c, err := newMixResult(order, models[0])
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, m := range models {
		for g := 1; g <= m.order; g++ {
			for _, idx := range m.NodesAtDepth(g) {
				n := m.at(idx)
				if !n.isValidProb() {
					continue
				}
				seq := m.pathOf(idx)
				key := seqKey(seq)
				if seen[key] {
					continue
				}
				seen[key] = true

				h := seq[:len(seq)-1]
				hist := h
				if length > 0 && len(hist) > length {
					hist = hist[len(hist)-length:]
				}

				posts := make([]float64, len(models))
				var sum float64
				for i, mm := range models {
					logScore := 0.0
					for j := 1; j <= len(hist); j++ {
						logScore += mm.ProbOf(hist[:j])
					}
					posts[i] = lambdas[i] * pow10(scale*logScore)
					sum += posts[i]
				}
				if sum <= 0 {
					copy(posts, lambdas)
					sum = 0
					for _, p := range posts {
						sum += p
					}
				}

				var mixed float64
				for i, mm := range models {
					pi := posts[i] / sum
					mixed += pi * pow10(mm.ProbOf(seq))
				}
				pNew := negInf
				if mixed > 0 {
					pNew = math.Log10(mixed)
				}
				c.InsertARPA(seq, pNew, 0)
			}
		}
	}

	Repair(c)
	return c, nil
}
