// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "github.com/bits-and-blooms/bitset"

// WordOfFunc resolves a word-id/case-mask pair to its surface form. It must
// return "<unk>" for unknown ids and be re-entrant for the lifetime of an
// emission pass (spec.md §6).
type WordOfFunc func(id WordID, cm CaseMask) string

// Trie is the n-gram hierarchy: an ordered tree of word-ids with per-node
// counts, case histogram, probability and back-off weight (spec.md §3.1-A).
// The Trie owns every Node in an arena slice and addresses them by index
// rather than pointer (see the "arena+index" design note in spec.md §9).
//
// A Trie is not safe for concurrent mutation (spec.md §5); all mutators
// assume single-threaded, cooperative access.
type Trie struct {
	nodes []node // nodes[0] is the root sentinel

	order      int
	deletedIDs *bitset.BitSet
	options    Options
	logger     Logger
	wordOf     WordOfFunc

	cache levelCache
}

// NewTrie creates an empty Trie of the given maximum n-gram order
// (1 <= order <= 9). wordOf and logger may be nil, in which case a
// panic-free default ("<unk>" / NopLogger) is used.
func NewTrie(order int, opts Options, logger Logger, wordOf WordOfFunc) (*Trie, error) {
	if order < 1 || order > 9 {
		return nil, newEngineErrorf(KindInput, "NewTrie", "order %d out of range [1,9]", order)
	}
	if logger == nil {
		logger = NopLogger{}
	}
	if wordOf == nil {
		wordOf = func(WordID, CaseMask) string { return "<unk>" }
	}
	t := &Trie{
		order:      order,
		deletedIDs: bitset.New(uint(NumReservedIDs)),
		options:    opts,
		logger:     logger,
		wordOf:     wordOf,
	}
	t.nodes = append(t.nodes, newNode(NIDW, noIndex))
	return t, nil
}

// Order returns the trie's maximum n-gram length N.
func (t *Trie) Order() int { return t.order }

// Root returns the index of the sentinel root node.
func (t *Trie) Root() nodeIndex { return 0 }

// at dereferences idx into the current node slab. Callers must not hold the
// returned pointer across any call that may append to t.nodes (allocNode,
// insertPath*); re-fetch with at() instead.
func (t *Trie) at(idx nodeIndex) *node {
	return &t.nodes[idx]
}

// NumNodes returns the number of live slab entries, including the root.
func (t *Trie) NumNodes() int { return len(t.nodes) }

// MarkDeleted adds id to the deleted-ids set (spec.md §3.1).
func (t *Trie) MarkDeleted(id WordID) {
	t.deletedIDs.Set(uint(id))
	t.invalidateCache()
}

func (t *Trie) isDeleted(id WordID) bool {
	return t.deletedIDs.Test(uint(id))
}

func (t *Trie) allocNode(idw WordID, parent nodeIndex) nodeIndex {
	t.nodes = append(t.nodes, newNode(idw, parent))
	return nodeIndex(len(t.nodes) - 1)
}

// insertPathPlaceholder walks/creates the path for seq starting at root,
// using placeholder as the weight of any newly created (non-terminal or
// terminal) node, and returns the terminal node's index.
func (t *Trie) insertPathPlaceholder(seq []WordID, placeholder float64) nodeIndex {
	cur := nodeIndex(0)
	for _, id := range seq {
		if idx, ok := t.at(cur).childOf(id); ok {
			cur = idx
			continue
		}
		idx := t.allocNode(id, cur)
		t.at(idx).weight = placeholder
		t.at(cur).setChild(id, idx)
		cur = idx
	}
	return cur
}

// lookupPath walks an existing path without creating nodes.
func (t *Trie) lookupPath(seq []WordID) (nodeIndex, bool) {
	cur := nodeIndex(0)
	for _, id := range seq {
		idx, ok := t.at(cur).childOf(id)
		if !ok {
			return noIndex, false
		}
		cur = idx
	}
	return cur, true
}

// ContextOk reports whether every prefix-node along seq is usable as a
// context: present, non-deleted, and with a finite, non-empty weight or the
// designated zero marker (spec.md §4.1).
func (t *Trie) ContextOk(seq []WordID) bool {
	cur := nodeIndex(0)
	for _, id := range seq {
		idx, ok := t.at(cur).childOf(id)
		if !ok {
			return false
		}
		if !t.at(idx).isWord(t.isDeleted(id)) {
			return false
		}
		cur = idx
	}
	return true
}

// splitOnUnknown invokes cb once per maximal non-<unk> run in seq, along
// with the run's start offset in seq and whether it is immediately followed
// by an <unk> token (spec.md §4.1.1). A run may be empty when <unk> tokens
// are adjacent or lead the sequence; cb must tolerate that.
func splitOnUnknown(seq []WordID, cb func(run []WordID, start int, trailingUnk bool)) {
	start := 0
	for i, id := range seq {
		if id == TokUnknown {
			cb(seq[start:i], start, true)
			start = i + 1
		}
	}
	if start < len(seq) {
		cb(seq[start:], start, false)
	}
}

// InsertSequence increments oc for every contiguous prefix-tail of length
// <= order found in seq, splitting on <unk> per §4.1.1. cases, if non-nil,
// must have the same length as seq and supplies the case-mask of each
// token; pass nil to skip case accounting. docID deduplicates dc: a node's
// dc increments at most once per docID.
func (t *Trie) InsertSequence(seq []WordID, cases []CaseMask, docID int64) {
	splitOnUnknown(seq, func(run []WordID, start int, trailingUnk bool) {
		var runCases []CaseMask
		if cases != nil {
			runCases = cases[start : start+len(run)]
		}
		t.ingestRun(run, runCases, docID)
		if trailingUnk {
			t.ingestRun([]WordID{TokUnknown}, []CaseMask{0}, docID)
		}
	})
	t.invalidateCache()
}

// ingestRun performs the sliding-window n-gram count insert for one
// contiguous, <unk>-free run of tokens.
func (t *Trie) ingestRun(run []WordID, cases []CaseMask, docID int64) {
	for end := 0; end < len(run); end++ {
		maxLen := t.order
		if end+1 < maxLen {
			maxLen = end + 1
		}
		var cm CaseMask
		if cases != nil {
			cm = cases[end]
		}
		for g := 1; g <= maxLen; g++ {
			t.insertCount(run[end-g+1:end+1], cm, docID)
		}
	}
}

// insertCount increments the terminal node of seq: oc always, dc at most
// once per docID, and the case histogram when cm != 0.
func (t *Trie) insertCount(seq []WordID, cm CaseMask, docID int64) {
	if len(seq) == 0 {
		return
	}
	term := t.insertPathPlaceholder(seq, 0.0)
	n := t.at(term)
	n.oc++
	if docID >= 0 && n.idd != docID {
		n.dc++
		n.idd = docID
	}
	if cm != 0 {
		n.addUpper(cm, 1)
	}
}

// InsertARPA places a fully-specified entry at seq; intermediate nodes are
// created with placeholder weight = NEG_INFINITY (spec.md §4.1). Returns
// false (Input error, no-op) if seq is empty or longer than order.
func (t *Trie) InsertARPA(seq []WordID, log10P, log10BOW float64) bool {
	if len(seq) == 0 {
		t.warnf("InsertARPA: empty sequence")
		return false
	}
	if len(seq) > t.order {
		t.warnf("InsertARPA: sequence length %d exceeds order %d", len(seq), t.order)
		return false
	}
	term := t.insertPathPlaceholder(seq, negInf)
	n := t.at(term)
	n.weight = log10P
	n.backoff = log10BOW
	t.invalidateCache()
	return true
}

// Delete sets weight = 0 on the terminal node along seq (spec.md §4.1);
// the node is kept (never destroyed) so lower-order fallbacks through it
// keep working. Returns false if seq does not resolve to an existing node.
func (t *Trie) Delete(seq []WordID) bool {
	idx, ok := t.lookupPath(seq)
	if !ok {
		t.warnf("delete: context does not exist: %v", seq)
		return false
	}
	t.at(idx).weight = 0
	t.invalidateCache()
	return true
}

// Increment adds delta to the weight at the terminal node of seq. Returns
// false if seq does not resolve to an existing node.
func (t *Trie) Increment(seq []WordID, delta float64) bool {
	idx, ok := t.lookupPath(seq)
	if !ok {
		t.warnf("increment: context does not exist: %v", seq)
		return false
	}
	t.at(idx).weight += delta
	t.invalidateCache()
	return true
}

// NodesAtDepth returns every node at depth d (0 is the root, 1..order are
// n-grams of the matching length). Returns nil outside [0, order].
func (t *Trie) NodesAtDepth(d int) []nodeIndex {
	if d == 0 {
		return []nodeIndex{0}
	}
	if d < 0 || d > t.order {
		return nil
	}
	ctxs := t.LevelContexts(d)
	var out []nodeIndex
	for _, c := range ctxs {
		out = append(out, t.at(c).sortedChildren()...)
	}
	return out
}

// VocabSize returns the number of root children carrying a real
// probability: the §9 open question ("unigrams() subtracts 1 from the
// root child count") resolved per property 2 (unigram normalisation) — it
// is exactly the |V| the Stolcke escape condition and Add-delta discount
// need, and excludes both the pseudo-root marker (there is none in this
// arena layout) and any still-unestimated placeholder.
func (t *Trie) VocabSize() int {
	n := 0
	for _, cIdx := range t.at(0).children {
		if t.at(cIdx).isValidProb() {
			n++
		}
	}
	return n
}

// TokenCount returns the sum of root-child occurrence counts: the running
// total-tokens count, kept separate from VocabSize for diagnostics only
// and never consulted by the smoothing math.
func (t *Trie) TokenCount() uint64 {
	var sum uint64
	for _, cIdx := range t.at(0).children {
		sum += t.at(cIdx).oc
	}
	return sum
}

// pathOf walks parent links back to the root and returns the sequence of
// word-ids from root to idx.
func (t *Trie) pathOf(idx nodeIndex) []WordID {
	var rev []WordID
	for idx != 0 && idx != noIndex {
		n := t.at(idx)
		rev = append(rev, n.idw)
		idx = n.parent
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}
