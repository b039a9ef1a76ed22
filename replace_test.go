// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import (
	"strings"
	"testing"
)

func TestReplaceInputValidation(t *testing.T) {
	t.Parallel()
	v := newVocab("a", "b")
	tr := newTestTrie(t, 2, v, Options{})
	tr.InsertARPA(v.seq("a"), -0.3, negInf)

	if tr.Replace(nil, v.seq("a"), CaseLower) {
		t.Errorf("empty old sequence must be a no-op returning false")
	}
	if tr.Replace(v.seq("a"), nil, CaseLower) {
		t.Errorf("empty new sequence must be a no-op returning false")
	}
	if tr.Replace(v.seq("a"), v.seq("a", "b"), CaseLower) {
		t.Errorf("mismatched lengths must be a no-op returning false")
	}
	if tr.Replace(v.seq("b"), v.seq("a"), CaseLower) {
		t.Errorf("replacing a non-existent path must be a no-op returning false")
	}
}

func TestReplaceUnigramLeaf(t *testing.T) {
	t.Parallel()
	v := newVocab("a", "b")
	tr := newTestTrie(t, 2, v, Options{})
	tr.InsertARPA(v.seq("a"), -0.3, -0.1)

	if !tr.Replace(v.seq("a"), v.seq("b"), CaseTitle) {
		t.Fatalf("replacing a leaf unigram should succeed")
	}

	bIdx, ok := tr.lookupPath(v.seq("b"))
	if !ok {
		t.Fatalf("new unigram b missing")
	}
	approxEqual(t, tr.at(bIdx).weight, -0.3, 1e-12, "migrated weight")
	approxEqual(t, tr.at(bIdx).backoff, -0.1, 1e-12, "migrated backoff")
	if dom, ok := tr.at(bIdx).dominantCase(); !ok || dom != CaseTitle {
		t.Errorf("dominant case of b = %v, want CaseTitle", dom)
	}

	aIdx, ok := tr.lookupPath(v.seq("a"))
	if !ok {
		t.Fatalf("old unigram a must survive as a zeroed node")
	}
	if tr.at(aIdx).weight != 0 {
		t.Errorf("old unigram weight = %v, want 0", tr.at(aIdx).weight)
	}
}

// TestReplaceUnigramEOSChildRule: a unigram with exactly </s> as its only
// child may still be replaced; any other child forbids it (spec.md §4.1.2).
func TestReplaceUnigramEOSChildRule(t *testing.T) {
	t.Parallel()
	v := newVocab("a", "b", "c")
	tr := newTestTrie(t, 2, v, Options{})
	tr.InsertARPA(v.seq("a"), -0.3, -0.1)
	tr.InsertARPA(append(v.seq("a"), TokEndOfSeq), -0.5, 0)

	if !tr.Replace(v.seq("a"), v.seq("b"), CaseLower) {
		t.Errorf("unigram whose only child is </s> should be replaceable")
	}

	tr2 := newTestTrie(t, 2, v, Options{})
	tr2.InsertARPA(v.seq("a"), -0.3, -0.1)
	tr2.InsertARPA(v.seq("a", "c"), -0.5, 0)
	if tr2.Replace(v.seq("a"), v.seq("b"), CaseLower) {
		t.Errorf("unigram with an ordinary child must not be replaceable")
	}
}

// TestReplaceBigramNewCase is spec.md §8 scenario S6: a bigram path is
// replaced with a re-cased variant and the new surface renders with the new
// case.
func TestReplaceBigramNewCase(t *testing.T) {
	t.Parallel()
	words := []string{"a", "b"}
	wordOf := func(id WordID, cm CaseMask) string {
		i := int(id) - int(NumReservedIDs)
		if i < 0 || i >= len(words) {
			return "<unk>"
		}
		if cm == CaseUpper {
			return strings.ToUpper(words[i])
		}
		return words[i]
	}
	tr, err := NewTrie(3, Options{}, NewTestLogger(t.Logf), wordOf)
	if err != nil {
		t.Fatalf("NewTrie: %v", err)
	}
	a, b := NumReservedIDs, NumReservedIDs+1
	tr.InsertARPA([]WordID{a, b}, -0.4, -0.2)

	if !tr.Replace([]WordID{a, b}, []WordID{a, b}, CaseUpper) {
		t.Fatalf("re-casing replace should succeed")
	}
	// Same path, new case: the terminal keeps its weight and renders upper.
	idx, ok := tr.lookupPath([]WordID{a, b})
	if !ok {
		t.Fatalf("replaced bigram missing")
	}
	approxEqual(t, tr.at(idx).weight, -0.4, 1e-12, "weight after re-case")

	got := tr.surfaceWords(idx, 0, false)
	if got[len(got)-1] != "B" {
		t.Errorf("replaced node renders %q, want %q", got[len(got)-1], "B")
	}
}

// TestReplaceContextVariantConflict: below the maximal order, a context
// variant already present under a different parent path blocks the replace.
func TestReplaceContextVariantConflict(t *testing.T) {
	t.Parallel()
	v := newVocab("a", "b", "c")
	tr := newTestTrie(t, 3, v, Options{})
	tr.InsertARPA(v.seq("a", "b"), -0.4, 0)
	tr.InsertARPA(v.seq("b"), -0.6, negInf) // the length-1 variant of (a,b)

	if tr.Replace(v.seq("a", "b"), v.seq("a", "c"), CaseLower) {
		t.Errorf("variant collision below max order must refuse the replace")
	}
	if idx, ok := tr.lookupPath(v.seq("a", "b")); !ok || tr.at(idx).weight != -0.4 {
		t.Errorf("refused replace must leave the trie untouched")
	}
}

// TestReplaceFakeAtMaxOrder: at the maximal order the variant conflict
// triggers the fake-replace path instead: the new path carries the old
// weight, the original terminal is zeroed, and the conflicting variant's
// children are copied onto the matching suffix of the new path.
func TestReplaceFakeAtMaxOrder(t *testing.T) {
	t.Parallel()
	v := newVocab("a", "b", "c", "d")
	tr := newTestTrie(t, 2, v, Options{})
	tr.InsertARPA(v.seq("a", "b"), -0.4, -0.2)
	tr.InsertARPA(v.seq("b"), -0.6, negInf)
	tr.InsertARPA(v.seq("b", "d"), -0.8, 0)

	if !tr.Replace(v.seq("a", "b"), v.seq("a", "c"), CaseLower) {
		t.Fatalf("fake replace at max order should succeed")
	}

	newIdx, ok := tr.lookupPath(v.seq("a", "c"))
	if !ok {
		t.Fatalf("new path (a,c) missing")
	}
	approxEqual(t, tr.at(newIdx).weight, -0.4, 1e-12, "fake-replaced weight")
	approxEqual(t, tr.at(newIdx).backoff, -0.2, 1e-12, "fake-replaced backoff")

	oldIdx, ok := tr.lookupPath(v.seq("a", "b"))
	if !ok || tr.at(oldIdx).weight != 0 {
		t.Errorf("original terminal must be zeroed, not removed")
	}

	// (b,d) was cloned onto the suffix variant c as (c,d).
	cdIdx, ok := tr.lookupPath(v.seq("c", "d"))
	if !ok {
		t.Fatalf("suffix children were not copied: (c,d) missing")
	}
	approxEqual(t, tr.at(cdIdx).weight, -0.8, 1e-12, "cloned child weight")

	// The clone must not alias the original's node.
	bdIdx, ok := tr.lookupPath(v.seq("b", "d"))
	if !ok {
		t.Fatalf("(b,d) should be untouched")
	}
	if bdIdx == cdIdx {
		t.Errorf("cloned child shares a node index with the original")
	}
}

// TestReplaceCaseMigration: the new node's case histogram is reset to the
// new case with count ceil(oc/2), or 1 when oc <= 1 (spec.md §4.1.2).
func TestReplaceCaseMigration(t *testing.T) {
	t.Parallel()
	v := newVocab("a", "b")
	tr := newTestTrie(t, 1, v, Options{})
	for doc := int64(0); doc < 5; doc++ {
		tr.InsertSequence(v.seq("a"), []CaseMask{CaseLower}, doc)
	}

	if !tr.Replace(v.seq("a"), v.seq("b"), CaseTitle) {
		t.Fatalf("replace should succeed")
	}
	bIdx, _ := tr.lookupPath(v.seq("b"))
	n := tr.at(bIdx)
	if n.oc != 5 {
		t.Errorf("oc = %d, want 5", n.oc)
	}
	if got := n.uppers[CaseTitle]; got != 3 {
		t.Errorf("uppers[CaseTitle] = %d, want ceil(5/2) = 3", got)
	}
	if len(n.uppers) != 1 {
		t.Errorf("case histogram must be reset to the new case only: %v", n.uppers)
	}
}

// TestReplaceRoundTripRestoresCounts is spec.md §8 property 7: replacing
// there and back leaves oc and dc intact. The case histogram does not come
// back unchanged: each migration resets it to ceil(oc/2) of the new case.
func TestReplaceRoundTripRestoresCounts(t *testing.T) {
	t.Parallel()
	v := newVocab("a", "b")
	tr := newTestTrie(t, 1, v, Options{})
	tr.InsertSequence(v.seq("a"), []CaseMask{CaseLower}, 0)
	tr.InsertSequence(v.seq("a"), []CaseMask{CaseLower}, 1)
	tr.InsertSequence(v.seq("a"), []CaseMask{CaseLower}, 2)

	aIdx, _ := tr.lookupPath(v.seq("a"))
	wantOC, wantDC := tr.at(aIdx).oc, tr.at(aIdx).dc

	if !tr.Replace(v.seq("a"), v.seq("b"), CaseLower) {
		t.Fatalf("first replace failed")
	}
	if !tr.Replace(v.seq("b"), v.seq("a"), CaseLower) {
		t.Fatalf("second replace failed")
	}

	aIdx, ok := tr.lookupPath(v.seq("a"))
	if !ok {
		t.Fatalf("a missing after round trip")
	}
	n := tr.at(aIdx)
	if n.oc != wantOC || n.dc != wantDC {
		t.Errorf("counts not restored: oc=%d dc=%d, want oc=%d dc=%d", n.oc, n.dc, wantOC, wantDC)
	}
	if got := n.uppers[CaseLower]; got != 2 {
		t.Errorf("uppers[CaseLower] = %d, want ceil(3/2) = 2", got)
	}
}
