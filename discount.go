// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

// DiscountKind names one of the seven discounting algorithms of spec.md
// §4.3. A Discount is a tagged union over per-variant state (spec.md §9's
// "enum-of-variants" note): one concrete type, dispatched on Kind, so call
// sites stay monomorphic instead of going through an interface vtable.
type DiscountKind int

const (
	KindGoodTuring DiscountKind = iota
	KindWittenBell
	KindKneserNey
	KindModKneserNey
	KindAddSmooth
	KindNaturalDiscount
	KindConstDiscount
)

// Discount holds the per-level state of one discounting algorithm across
// all n-gram orders 1..order. Construct with one of the New* functions.
type Discount struct {
	kind  DiscountKind
	order int

	// ConstDiscount / AddSmooth parameters, constant across levels.
	param     float64
	vocabSize int

	// Good-Turing, per level g (index g, 0 unused).
	minCount []uint64
	maxCount []uint64
	coeff    [][]float64 // coeff[g][k], k in [1, maxCount[g]]

	// Kneser-Ney / Modified-KN, per level g.
	d1, d2, d3plus []float64
	modified       []bool
}

func newDiscount(kind DiscountKind, order int) *Discount {
	return &Discount{
		kind:     kind,
		order:    order,
		minCount: make([]uint64, order+1),
		maxCount: make([]uint64, order+1),
		coeff:    make([][]float64, order+1),
		d1:       make([]float64, order+1),
		d2:       make([]float64, order+1),
		d3plus:   make([]float64, order+1),
		modified: make([]bool, order+1),
	}
}

// NewGoodTuring creates a Good-Turing discount. maxCutoff is the initial
// max_count[g] ceiling (spec.md §4.3); Estimate lowers it on failure.
func NewGoodTuring(order int, maxCutoff uint64) *Discount {
	d := newDiscount(KindGoodTuring, order)
	for g := 1; g <= order; g++ {
		d.maxCount[g] = maxCutoff
		d.minCount[g] = 1
	}
	return d
}

// NewWittenBell creates a Witten-Bell discount.
func NewWittenBell(order int) *Discount { return newDiscount(KindWittenBell, order) }

// NewKneserNey creates a (non-modified) Kneser-Ney discount.
func NewKneserNey(order int) *Discount { return newDiscount(KindKneserNey, order) }

// NewModKneserNey creates a Modified Kneser-Ney discount.
func NewModKneserNey(order int) *Discount { return newDiscount(KindModKneserNey, order) }

// NewAddSmooth creates an Add-delta discount over a vocabulary of size v.
func NewAddSmooth(order int, delta float64, v int) *Discount {
	d := newDiscount(KindAddSmooth, order)
	d.param = delta
	d.vocabSize = v
	return d
}

// NewNaturalDiscount creates a Natural discount.
func NewNaturalDiscount(order int) *Discount { return newDiscount(KindNaturalDiscount, order) }

// NewConstDiscount creates a constant discount of amount d. d == 0 makes
// NoDiscount true: the level is left untouched.
func NewConstDiscount(order int, d float64) *Discount {
	disc := newDiscount(KindConstDiscount, order)
	disc.param = d
	return disc
}

// MinCount returns the minimum occurrence count an n-gram of order g needs
// to be treated as a real event during estimation; entries below it are
// forced to zero probability at that order unless OptAllGrams is set.
// It is 1 for every algorithm unless raised with SetMinCount.
func (d *Discount) MinCount(g int) uint64 {
	if d.minCount[g] < 1 {
		return 1
	}
	return d.minCount[g]
}

// SetMinCount raises the minimum-count filter for level g.
func (d *Discount) SetMinCount(g int, c uint64) {
	d.minCount[g] = c
}

// NoDiscount reports whether level g should be left untouched.
func (d *Discount) NoDiscount(g int) bool {
	return d.kind == KindConstDiscount && d.param == 0
}

// countOfCounts tallies, over every depth-g node, how many have oc == c for
// c in [1, maxK+1] (maxK+1 feeds Good-Turing's n_{k+1}), skipping <s> nodes (never an event per spec.md §4.4).
func countOfCounts(t *Trie, g int, maxK uint64) []uint64 {
	n := make([]uint64, maxK+2)
	for _, idx := range t.NodesAtDepth(g) {
		node := t.at(idx)
		if node.idw == TokStartOfSeq {
			continue
		}
		if node.oc >= 1 && node.oc <= maxK+1 {
			n[node.oc]++
		}
	}
	return n
}

// Prepare rewrites oc for KN / Modified-KN adjusted counts (spec.md §4.3):
// the count of distinct one-word extensions to the left, replacing raw
// token counts. A no-op for every other algorithm, and for the maximal
// order (there is no order+1 evidence to derive continuations from).
// Idempotent per level via the modified[g] flag.
func (d *Discount) Prepare(t *Trie, g int) {
	if d.kind != KindKneserNey && d.kind != KindModKneserNey {
		return
	}
	if g >= d.order || d.modified[g] {
		return
	}

	adjusted := make(map[nodeIndex]uint64)
	for _, u := range t.NodesAtDepth(g + 1) {
		un := t.at(u)
		if un.oc == 0 {
			continue
		}
		path := t.pathOf(u)
		suffix := path[1:]
		if target, ok := t.lookupPath(suffix); ok {
			adjusted[target]++
		}
	}

	for _, idx := range t.NodesAtDepth(g) {
		n := t.at(idx)
		if n.idw == TokStartOfSeq {
			continue
		}
		n.oc = adjusted[idx]
	}

	d.modified[g] = true
}

// Estimate computes the per-level constants this algorithm needs before
// discount()/lowerWeight() can be called for level g. Returns false when a
// required count-of-counts is zero; for Good-Turing this first retries with
// a lower max_count before failing outright.
func (d *Discount) Estimate(t *Trie, g int) bool {
	switch d.kind {
	case KindGoodTuring:
		return d.estimateGoodTuring(t, g)
	case KindKneserNey:
		return d.estimateKneserNey(t, g)
	case KindModKneserNey:
		return d.estimateModKneserNey(t, g)
	default:
		return true
	}
}

func (d *Discount) estimateGoodTuring(t *Trie, g int) bool {
	for {
		k := d.maxCount[g]
		if k == 0 {
			return false
		}
		n := countOfCounts(t, g, k)
		if n[1] == 0 {
			return false // singleton count is zero
		}
		commonTerm := float64(k+1) * float64(n[k+1]) / float64(n[1])
		coeffs := make([]float64, k+1)
		ok := true
		for c := uint64(1); c <= k; c++ {
			if n[c] == 0 {
				ok = false
				break
			}
			cStar := float64(c+1) * float64(n[c+1]) / float64(n[c])
			v := (cStar/float64(c) - commonTerm) / (1 - commonTerm)
			if v <= 0 || v > 1 {
				v = 1
			}
			coeffs[c] = v
		}
		if !ok {
			if k == 1 {
				return false
			}
			d.maxCount[g] = k - 1
			continue
		}
		d.coeff[g] = coeffs
		return true
	}
}

func (d *Discount) estimateKneserNey(t *Trie, g int) bool {
	n := countOfCounts(t, g, 2)
	if n[1] == 0 || n[2] == 0 {
		return false
	}
	D := float64(n[1]) / (float64(n[1]) + 2*float64(n[2]))
	d.d1[g] = D
	return true
}

func (d *Discount) estimateModKneserNey(t *Trie, g int) bool {
	n := countOfCounts(t, g, 4)
	if n[1] == 0 || n[2] == 0 || n[3] == 0 || n[4] == 0 {
		return false
	}
	Y := float64(n[1]) / (float64(n[1]) + 2*float64(n[2]))
	d.d1[g] = 1 - 2*Y*float64(n[2])/float64(n[1])
	d.d2[g] = 2 - 3*Y*float64(n[3])/float64(n[2])
	d.d3plus[g] = 3 - 4*Y*float64(n[4])/float64(n[3])
	return true
}

// DiscountFactor returns the multiplicative factor in [0,1] applied to
// k/total for a child observed k times out of total, among observed
// distinct children, at level g.
func (d *Discount) DiscountFactor(g int, k, total uint64, observed int) float64 {
	if k == 0 {
		return 1
	}
	switch d.kind {
	case KindGoodTuring:
		if k > d.maxCount[g] || len(d.coeff[g]) == 0 {
			return 1
		}
		return d.coeff[g][k]
	case KindWittenBell:
		return float64(total) / (float64(total) + float64(observed))
	case KindConstDiscount:
		if d.param == 0 || float64(k) <= d.param {
			return 1
		}
		return (float64(k) - d.param) / float64(k)
	case KindAddSmooth:
		num := 1 + d.param/float64(k)
		den := 1 + float64(d.vocabSize)*d.param/float64(total)
		return num / den
	case KindNaturalDiscount:
		c, o := float64(total), float64(observed)
		num := c*(c+1) + o*(1-o)
		den := c*(c+1) + 2*o
		if den == 0 {
			return 1
		}
		return num / den
	case KindKneserNey:
		D := d.d1[g]
		if D == 0 || float64(k) <= D {
			return 1
		}
		return (float64(k) - D) / float64(k)
	case KindModKneserNey:
		var D float64
		switch {
		case k == 1:
			D = d.d1[g]
		case k == 2:
			D = d.d2[g]
		default:
			D = d.d3plus[g]
		}
		if D == 0 || float64(k) <= D {
			return 1
		}
		return (float64(k) - D) / float64(k)
	default:
		return 1
	}
}

// LowerWeight returns the interpolation weight lambda_g attached to the
// back-off distribution for a context with the given aggregate statistics.
// Zero for non-interpolated algorithms (spec.md §4.3).
func (d *Discount) LowerWeight(g int, total uint64, observed, nGE2, nGE3 int) float64 {
	if total == 0 {
		return 0
	}
	switch d.kind {
	case KindWittenBell:
		return float64(observed) / (float64(total) + float64(observed))
	case KindConstDiscount:
		return d.param * float64(observed) / float64(total)
	case KindKneserNey:
		return d.d1[g] * float64(observed) / float64(total)
	case KindModKneserNey:
		n1ctx := observed - nGE2
		n2ctx := nGE2 - nGE3
		n3ctx := nGE3
		sum := d.d1[g]*float64(n1ctx) + d.d2[g]*float64(n2ctx) + d.d3plus[g]*float64(n3ctx)
		return sum / float64(total)
	default:
		return 0
	}
}
