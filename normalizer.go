// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "math"

// computeBackoff sets h.backoff so that h's distribution plus its back-off
// mass sums to one (spec.md §4.5, invariant 3). Contexts with no children
// carry no back-off entry at all: backoff is set to negInf and is omitted
// at emission.
func (t *Trie) computeBackoff(hIdx nodeIndex) {
	h := t.at(hIdx)
	if len(h.children) == 0 {
		h.backoff = negInf
		return
	}

	tail := t.pathOf(hIdx)
	if len(tail) > 0 {
		tail = tail[1:]
	}

	var sumP, sumLower float64
	for idw, cIdx := range h.children {
		c := t.at(cIdx)
		if !c.isValidProb() {
			continue
		}
		sumP += pow10(c.weight)
		sumLower += pow10(t.lowerProb(tail, idw))
	}

	numerator := 1 - sumP
	denominator := 1 - sumLower
	if math.Abs(numerator) < epsilon {
		numerator = 0
	}
	if math.Abs(denominator) < epsilon {
		denominator = 0
	}

	switch {
	case numerator < 0:
		t.warnf("backoff: negative numerator at %v", t.pathOf(hIdx))
		h.backoff = negInf
	case numerator == 0 && denominator == 0:
		// Degenerate case: no residual mass on either side, log(1) = 0.
		h.backoff = 0
	case denominator == 0 && numerator > 0:
		// Scale-to-one: the tail distribution has no mass left to back off
		// into, so rescale this context's own children up to sum to one
		// instead of assigning a usable BOW.
		scale := -math.Log10(1 - numerator)
		for _, cIdx := range h.children {
			c := t.at(cIdx)
			if c.isValidProb() {
				c.weight += scale
			}
		}
		h.backoff = 0
	case denominator < 0:
		t.warnf("backoff: non-positive denominator at %v", t.pathOf(hIdx))
		h.backoff = negInf
	default:
		h.backoff = math.Log10(numerator) - math.Log10(denominator)
	}
}

// Distribute assigns the unigram root's residual probability mass (spec.md
// §4.5, g=0 case; property 2). It works entirely from the root's existing
// children: a "zeroton" is a root child that already exists in the trie
// (inserted via InsertARPA, mixing, or otherwise) but carries no real
// probability yet. When there are none, the mass is blended uniformly into
// every non-start, non-<unk> unigram instead.
func (t *Trie) Distribute() {
	root := t.at(0)

	var sumP float64
	var zerotons []WordID
	numWords := 0
	for idw, cIdx := range root.children {
		if t.isNonEvent(idw) {
			continue
		}
		if idw != TokUnknown {
			numWords++
		}
		c := t.at(cIdx)
		if c.isValidProb() {
			sumP += pow10(c.weight)
		} else {
			c.weight = negInf
			zerotons = append(zerotons, idw)
		}
	}

	mass := 1 - sumP
	if math.Abs(mass) < epsilon {
		return
	}
	if mass <= 0 {
		return
	}

	if len(zerotons) > 0 {
		share := math.Log10(mass / float64(len(zerotons)))
		for _, idw := range zerotons {
			idx, _ := root.childOf(idw)
			t.at(idx).weight = share
		}
		return
	}

	if numWords == 0 {
		return
	}
	addend := mass / float64(numWords)
	for idw, cIdx := range root.children {
		if t.isNonEvent(idw) || idw == TokUnknown {
			continue
		}
		c := t.at(cIdx)
		c.weight = math.Log10(pow10(c.weight) + addend)
	}
}
