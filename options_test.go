// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "testing"

func TestOptionsHasDefault(t *testing.T) {
	t.Parallel()
	var o Options
	for opt := Option(0); opt < numOptions; opt++ {
		if o.Has(opt) {
			t.Errorf("zero-value Options should have no bits set, found %d", opt)
		}
	}
}

func TestOptionsNewAndHas(t *testing.T) {
	t.Parallel()
	o := NewOptions(OptDebug, OptInterpolate)
	if !o.Has(OptDebug) || !o.Has(OptInterpolate) {
		t.Fatalf("NewOptions should set every requested flag")
	}
	if o.Has(OptLowerCase) || o.Has(OptResetUnk) || o.Has(OptNotTrain) || o.Has(OptAllGrams) {
		t.Errorf("NewOptions should leave unrequested flags clear")
	}
}

func TestOptionsWithWithoutImmutable(t *testing.T) {
	t.Parallel()
	base := NewOptions(OptDebug)
	with := base.With(OptInterpolate)

	if base.Has(OptInterpolate) {
		t.Errorf("With must not mutate the receiver")
	}
	if !with.Has(OptDebug) || !with.Has(OptInterpolate) {
		t.Errorf("With should carry forward existing flags plus the new one")
	}

	without := with.Without(OptDebug)
	if !with.Has(OptDebug) {
		t.Errorf("Without must not mutate the receiver")
	}
	if without.Has(OptDebug) {
		t.Errorf("Without should clear the requested flag")
	}
	if !without.Has(OptInterpolate) {
		t.Errorf("Without should leave other flags untouched")
	}
}
