// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "github.com/bits-and-blooms/bitset"

// Option is one bit of the engine's stable behaviour flags.
type Option uint

const (
	OptDebug      Option = iota // enable diagnostic log messages
	OptAllGrams                 // ignore minimum-count filters at every order
	OptLowerCase                // discard case variants on emission
	OptResetUnk                 // force <unk> unigram to pseudo-zero
	OptNotTrain                 // skip the estimation pass (load-only mode)
	OptInterpolate              // enable interpolation in the estimator

	numOptions
)

// Options is an immutable bit-set of behaviour flags, owned by the Trie.
// It is backed by bitset.BitSet for compact membership tests; the
// membership set here is small (six stable flags) so New/Set are cheap and
// allocation-free after construction.
type Options struct {
	bits *bitset.BitSet
}

// NewOptions builds an Options value with the given flags set.
func NewOptions(flags ...Option) Options {
	bs := bitset.New(uint(numOptions))
	for _, f := range flags {
		bs.Set(uint(f))
	}
	return Options{bits: bs}
}

// Has reports whether opt is set.
func (o Options) Has(opt Option) bool {
	if o.bits == nil {
		return false
	}
	return o.bits.Test(uint(opt))
}

// With returns a copy of o with opt set, leaving o unmodified.
func (o Options) With(opt Option) Options {
	bs := bitset.New(uint(numOptions))
	if o.bits != nil {
		bs = o.bits.Clone()
	}
	bs.Set(uint(opt))
	return Options{bits: bs}
}

// Without returns a copy of o with opt cleared, leaving o unmodified.
func (o Options) Without(opt Option) Options {
	bs := bitset.New(uint(numOptions))
	if o.bits != nil {
		bs = o.bits.Clone()
	}
	bs.Clear(uint(opt))
	return Options{bits: bs}
}
