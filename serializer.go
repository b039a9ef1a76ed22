// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Stamp is the optional free-form comment block emitted before \data\
// (spec.md §6 grammar, SPEC_FULL.md supplemented feature 1). The engine
// never generates BuiltAt itself; callers supply it.
type Stamp struct {
	Version string
	BuiltAt time.Time
}

// emitsPseudoZero reports whether a node without a real probability is
// still emitted, as the pseudo_zero literal: the reset <unk> unigram
// (OptResetUnk forces it to pseudo-zero rather than dropping it).
func (t *Trie) emitsPseudoZero(n *node, g int) bool {
	return g == 1 && n.idw == TokUnknown && t.options.Has(OptResetUnk) && n.weight == negInf
}

// emittableCount reports how many ARPA lines a node at depth g contributes:
// 0 when it carries no real probability (1 for the pseudo-zero <unk>
// unigram), otherwise 1, or one per case variant when g==1, case-folding is
// off, and the node has more than one recorded case.
func (t *Trie) emittableCount(idx nodeIndex, g int) int {
	n := t.at(idx)
	if !n.isValidProb() {
		if t.emitsPseudoZero(n, g) {
			return 1
		}
		return 0
	}
	if g == 1 && !t.options.Has(OptLowerCase) && len(n.uppers) > 1 {
		return len(n.uppers)
	}
	return 1
}

// sortedCases returns n's case-mask/count pairs ordered by descending
// count, ties broken by ascending mask (SPEC_FULL.md supplemented feature
// 3: deterministic case-variant emission order).
func sortedCases(n *node) []CaseMask {
	cases := make([]CaseMask, 0, len(n.uppers))
	for cm := range n.uppers {
		cases = append(cases, cm)
	}
	sort.Slice(cases, func(i, j int) bool {
		ci, cj := cases[i], cases[j]
		if n.uppers[ci] != n.uppers[cj] {
			return n.uppers[ci] > n.uppers[cj]
		}
		return ci < cj
	})
	return cases
}

// surfaceWords renders the path to idx as surface strings, using each
// node's dominant case (0 when it has no case history), except that idx
// itself uses overrideCase when useOverride is true.
func (t *Trie) surfaceWords(idx nodeIndex, overrideCase CaseMask, useOverride bool) []string {
	indices := t.pathIndices(idx)
	words := make([]string, len(indices))
	for i, pIdx := range indices {
		n := t.at(pIdx)
		cm := CaseMask(0)
		if dom, ok := n.dominantCase(); ok {
			cm = dom
		}
		if useOverride && pIdx == idx {
			cm = overrideCase
		}
		words[i] = t.wordOf(n.idw, cm)
	}
	return words
}

func weightText(w float64) string {
	if w == negInf || math.IsInf(w, -1) {
		return strconv.FormatFloat(pseudoZero, 'f', -1, 64)
	}
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// EmitARPA writes the trie in ARPA text format to w (spec.md §4.9, §6
// grammar). stamp, if non-nil, is rendered as commented lines before
// \data\.
func (t *Trie) EmitARPA(w io.Writer, stamp *Stamp) error {
	bw := bufio.NewWriter(w)

	if stamp != nil {
		fmt.Fprintf(bw, "; version %s\n", stamp.Version)
		fmt.Fprintf(bw, "; built %s\n", stamp.BuiltAt.UTC().Format(time.RFC3339))
	}

	fmt.Fprint(bw, "\\data\\\n")

	counts := make([]int, t.order+1)
	for g := 1; g <= t.order; g++ {
		for _, idx := range t.NodesAtDepth(g) {
			counts[g] += t.emittableCount(idx, g)
		}
	}
	for g := 1; g <= t.order; g++ {
		fmt.Fprintf(bw, "ngram %d=%d\n", g, counts[g])
	}

	for g := 1; g <= t.order; g++ {
		fmt.Fprintf(bw, "\\%d-grams:\n", g)
		for _, idx := range t.NodesAtDepth(g) {
			n := t.at(idx)
			if !n.isValidProb() && !t.emitsPseudoZero(n, g) {
				continue
			}

			var bowText string
			hasBow := g < t.order && len(n.children) > 0 && n.backoff != negInf
			if hasBow {
				bowText = weightText(n.backoff)
			}

			if g == 1 && !t.options.Has(OptLowerCase) && len(n.uppers) > 1 {
				for _, cm := range sortedCases(n) {
					words := t.surfaceWords(idx, cm, true)
					writeARPALine(bw, weightText(n.weight), words, bowText)
				}
				continue
			}

			words := t.surfaceWords(idx, 0, false)
			writeARPALine(bw, weightText(n.weight), words, bowText)
		}
	}

	fmt.Fprint(bw, "\\end\\\n")
	return bw.Flush()
}

func writeARPALine(bw *bufio.Writer, weight string, words []string, bow string) {
	fmt.Fprint(bw, weight, "\t", strings.Join(words, " "))
	if bow != "" {
		fmt.Fprint(bw, "\t", bow)
	}
	fmt.Fprint(bw, "\n")
}

// ToWordIDFunc resolves a surface word back to its word-id, the inverse of
// WordOfFunc, needed by ParseARPA since ARPA text carries surface forms.
type ToWordIDFunc func(surface string) (WordID, bool)

// ParseARPA reads ARPA text from r into a freshly built Trie of the given
// order. toID resolves surface words to ids; lines whose words cannot all
// be resolved are skipped with a warning (spec.md §7, Structural no-op).
func ParseARPA(r io.Reader, order int, opts Options, logger Logger, wordOf WordOfFunc, toID ToWordIDFunc) (*Trie, error) {
	t, err := NewTrie(order, opts, logger, wordOf)
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	section := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if line == "\\data\\" {
			section = 0
			continue
		}
		if line == "\\end\\" {
			break
		}
		if strings.HasPrefix(line, "\\") && strings.HasSuffix(line, "-grams:") {
			fmt.Sscanf(line, "\\%d-grams:", &section)
			continue
		}
		if strings.HasPrefix(line, "ngram ") {
			continue
		}
		if section == 0 {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			t.warnf("ParseARPA: malformed line: %q", line)
			continue
		}
		p, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			t.warnf("ParseARPA: bad weight: %q", line)
			continue
		}
		if p == pseudoZero {
			p = negInf
		}

		words := strings.Fields(fields[1])
		seq := make([]WordID, 0, len(words))
		ok := true
		for _, w := range words {
			id, found := toID(w)
			if !found {
				ok = false
				break
			}
			seq = append(seq, id)
		}
		if !ok {
			t.warnf("ParseARPA: unresolved word in line: %q", line)
			continue
		}

		bow := 0.0
		if len(fields) >= 3 {
			bow, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				t.warnf("ParseARPA: bad backoff: %q", line)
				bow = 0
			}
			if bow == pseudoZero {
				bow = negInf
			}
		}

		t.InsertARPA(seq, p, bow)
	}
	t.invalidateCache()
	return t, sc.Err()
}

// BinaryOptions controls DumpBinary's payload shape.
type BinaryOptions struct {
	// ArpaOnly omits oc/dc from each entry (spec.md §4.9).
	ArpaOnly bool
}

// DumpBinary writes the little-endian binary mirror of t: a header of
// (order:u8, arpa_only:u8), then per n-gram order 1..order a length-prefixed
// block (count:u16, [entry x count]), where entry = (idw:u32,
// case_mask:u32, [oc:u64, dc:u64], weight:f64, backoff:f64, path_len:u8,
// [word-id:u32 x path_len]). Only nodes with a real probability are written;
// the path lets LoadBinary rebuild each entry's position in the trie.
func (t *Trie) DumpBinary(w io.Writer, opts BinaryOptions) error {
	bw := bufio.NewWriter(w)

	write := func(v any) error { return binary.Write(bw, binary.LittleEndian, v) }

	if err := write(uint8(t.order)); err != nil {
		return err
	}
	if err := write(boolToByte(opts.ArpaOnly)); err != nil {
		return err
	}

	for g := 1; g <= t.order; g++ {
		nodes := t.NodesAtDepth(g)
		var entries []nodeIndex
		for _, idx := range nodes {
			if t.at(idx).isValidProb() {
				entries = append(entries, idx)
			}
		}
		if err := write(uint16(len(entries))); err != nil {
			return err
		}
		for _, idx := range entries {
			n := t.at(idx)
			cm := CaseMask(0)
			if dom, ok := n.dominantCase(); ok {
				cm = dom
			}
			if err := write(uint32(n.idw)); err != nil {
				return err
			}
			if err := write(uint32(cm)); err != nil {
				return err
			}
			if !opts.ArpaOnly {
				if err := write(n.oc); err != nil {
					return err
				}
				if err := write(n.dc); err != nil {
					return err
				}
			}
			if err := write(n.weight); err != nil {
				return err
			}
			if err := write(n.backoff); err != nil {
				return err
			}
			path := t.pathOf(idx)
			if err := write(uint8(len(path))); err != nil {
				return err
			}
			for _, id := range path {
				if err := write(uint32(id)); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// LoadBinary reads a stream written by DumpBinary back into a new Trie.
func LoadBinary(r io.Reader, opts Options, logger Logger, wordOf WordOfFunc) (*Trie, error) {
	br := bufio.NewReader(r)

	read := func(v any) error { return binary.Read(br, binary.LittleEndian, v) }

	var orderByte, arpaOnlyByte uint8
	if err := read(&orderByte); err != nil {
		return nil, err
	}
	if err := read(&arpaOnlyByte); err != nil {
		return nil, err
	}
	arpaOnly := arpaOnlyByte != 0

	t, err := NewTrie(int(orderByte), opts, logger, wordOf)
	if err != nil {
		return nil, err
	}

	for g := 1; g <= t.order; g++ {
		var count uint16
		if err := read(&count); err != nil {
			return nil, err
		}
		for i := uint16(0); i < count; i++ {
			var idw32, cm32 uint32
			if err := read(&idw32); err != nil {
				return nil, err
			}
			if err := read(&cm32); err != nil {
				return nil, err
			}
			var oc, dc uint64
			if !arpaOnly {
				if err := read(&oc); err != nil {
					return nil, err
				}
				if err := read(&dc); err != nil {
					return nil, err
				}
			}
			var weight, backoff float64
			if err := read(&weight); err != nil {
				return nil, err
			}
			if err := read(&backoff); err != nil {
				return nil, err
			}
			var pathLen uint8
			if err := read(&pathLen); err != nil {
				return nil, err
			}
			path := make([]WordID, pathLen)
			for j := range path {
				var id uint32
				if err := read(&id); err != nil {
					return nil, err
				}
				path[j] = WordID(id)
			}

			idx := t.insertPathPlaceholder(path, negInf)
			n := t.at(idx)
			n.weight = weight
			n.backoff = backoff
			if !arpaOnly {
				n.oc, n.dc = oc, dc
			}
			if cm32 != 0 {
				n.resetUpper(CaseMask(cm32), 1)
			}
		}
	}
	t.invalidateCache()
	return t, nil
}

// equalARPA reports whether emitting a and b produces byte-identical ARPA
// text, used by round-trip tests (spec.md §8 properties 3, 4).
func equalARPA(a, b *Trie) (bool, error) {
	var ba, bb bytes.Buffer
	if err := a.EmitARPA(&ba, nil); err != nil {
		return false, err
	}
	if err := b.EmitARPA(&bb, nil); err != nil {
		return false, err
	}
	return ba.String() == bb.String(), nil
}
