// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "math"

// isNonEvent reports whether id is excluded from a context's aggregate
// statistics (total/observed/nGE2/nGE3) and forced to zero probability in
// the estimator's probability loop (spec.md §4.4): <s> always, and <unk>
// when OptResetUnk is set.
func (t *Trie) isNonEvent(id WordID) bool {
	if id == TokStartOfSeq {
		return true
	}
	return id == TokUnknown && t.options.Has(OptResetUnk)
}

// pathIndices returns the chain of node indices from root to idx, root
// excluded (mirrors pathOf, but keeps indices instead of word-ids so callers
// can read per-step case information).
func (t *Trie) pathIndices(idx nodeIndex) []nodeIndex {
	var rev []nodeIndex
	for idx != 0 && idx != noIndex {
		rev = append(rev, idx)
		idx = t.at(idx).parent
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// lowerProb looks up the already-estimated weight of the path tail+[w]. It
// is the P(w | tail(h)) term used throughout §4.4-4.7: by the time a level
// g pass needs it, tail+[w] sits at depth g-1 and was estimated during the
// previous level's pass. Returns negInf (log 0) when the path is absent or
// holds no real probability.
func (t *Trie) lowerProb(tail []WordID, w WordID) float64 {
	seq := make([]WordID, 0, len(tail)+1)
	seq = append(seq, tail...)
	seq = append(seq, w)
	idx, ok := t.lookupPath(seq)
	if !ok {
		return negInf
	}
	n := t.at(idx)
	if !n.isValidProb() {
		return negInf
	}
	return n.weight
}

// ProbOf returns log10 P(seq[last] | seq[:last]) by walking the standard
// back-off chain: if seq resolves directly to a node with a real
// probability, that is the answer; otherwise the context's BOW is added and
// the lookup retries against the one-word-shorter context (spec.md
// GLOSSARY, "Back-off weight"). Used by the Mixer, which needs whole-model
// lookups rather than same-level sibling lookups. Returns negInf if seq is
// empty or the recursion bottoms out at an unobserved unigram.
func (t *Trie) ProbOf(seq []WordID) float64 {
	if len(seq) == 0 {
		return negInf
	}
	acc := 0.0
	cur := seq
	for {
		if idx, ok := t.lookupPath(cur); ok {
			n := t.at(idx)
			if n.isValidProb() {
				return acc + n.weight
			}
		}
		if len(cur) <= 1 {
			return acc + negInf
		}
		prefix := cur[:len(cur)-1]
		if pIdx, ok := t.lookupPath(prefix); ok {
			acc += t.at(pIdx).backoff
		}
		cur = cur[1:]
	}
}

// contextStats accumulates total/observed/nGE2/nGE3 over the valid,
// non-event children of h (spec.md §4.4 step 2).
func (t *Trie) contextStats(hIdx nodeIndex) (total uint64, observed, nGE2, nGE3 int) {
	h := t.at(hIdx)
	for idw, cIdx := range h.children {
		if t.isNonEvent(idw) {
			continue
		}
		c := t.at(cIdx)
		if c.oc == 0 {
			continue
		}
		total += c.oc
		observed++
		if c.oc >= 2 {
			nGE2++
		}
		if c.oc >= 3 {
			nGE3++
		}
	}
	return
}

// ancestorLogProb sums the weight of every node on the path from root to
// idx (exclusive of idx's own weight), i.e. log10 P(history), the "total"
// term of the Stolcke pruning formula (spec.md §4.7 step 2).
func (t *Trie) ancestorLogProb(idx nodeIndex) float64 {
	sum := 0.0
	cur := t.at(idx).parent
	for cur != noIndex {
		n := t.at(cur)
		if n.isValidProb() {
			sum += n.weight
		}
		cur = n.parent
	}
	return sum
}

func pow10(x float64) float64 { return math.Pow(10, x) }
