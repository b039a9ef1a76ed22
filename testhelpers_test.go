// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import (
	"math"
	"testing"
)

// this file contains helpers shared by the other test files.

// vocab is a tiny closed word-id dictionary used across the test suite: ids
// from NumReservedIDs upward map 1:1 onto the words slice.
type vocab struct {
	words []string
}

func newVocab(words ...string) *vocab {
	return &vocab{words: words}
}

func (v *vocab) id(w string) WordID {
	switch w {
	case "<s>":
		return TokStartOfSeq
	case "</s>":
		return TokEndOfSeq
	case "<unk>":
		return TokUnknown
	}
	for i, s := range v.words {
		if s == w {
			return NumReservedIDs + WordID(i)
		}
	}
	panic("unknown test word: " + w)
}

func (v *vocab) seq(words ...string) []WordID {
	seq := make([]WordID, len(words))
	for i, w := range words {
		seq[i] = v.id(w)
	}
	return seq
}

func (v *vocab) wordOf(id WordID, _ CaseMask) string {
	switch id {
	case TokStartOfSeq:
		return "<s>"
	case TokEndOfSeq:
		return "</s>"
	case TokUnknown:
		return "<unk>"
	}
	idx := int(id) - int(NumReservedIDs)
	if idx < 0 || idx >= len(v.words) {
		return "<unk>"
	}
	return v.words[idx]
}

func (v *vocab) toID(s string) (WordID, bool) {
	switch s {
	case "<s>":
		return TokStartOfSeq, true
	case "</s>":
		return TokEndOfSeq, true
	case "<unk>":
		return TokUnknown, true
	}
	for i, w := range v.words {
		if w == s {
			return NumReservedIDs + WordID(i), true
		}
	}
	return 0, false
}

// approxEqual reports whether got and want are within eps of each other,
// failing the test with a descriptive message otherwise. Mirrors the
// teacher's inline t.Errorf style rather than a matcher library.
func approxEqual(t *testing.T, got, want, eps float64, msg string, args ...any) {
	t.Helper()
	if math.IsInf(want, -1) && math.IsInf(got, -1) {
		return
	}
	if math.Abs(got-want) > eps {
		t.Errorf(msg+": got %v, want %v (eps %v)", append(args, got, want, eps)...)
	}
}

// newTestTrie builds a Trie of the given order over v, logging through t.
func newTestTrie(t *testing.T, order int, v *vocab, opts Options) *Trie {
	t.Helper()
	tr, err := NewTrie(order, opts, NewTestLogger(t.Logf), v.wordOf)
	if err != nil {
		t.Fatalf("NewTrie: %v", err)
	}
	return tr
}

// trainSentences inserts each sentence (already tokenized, <s>/</s> included
// by the caller) as one document.
func trainSentences(tr *Trie, v *vocab, sentences [][]string) {
	for docID, sent := range sentences {
		tr.InsertSequence(v.seq(sent...), nil, int64(docID))
	}
}
