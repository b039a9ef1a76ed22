// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

// Package arpalm estimates, manipulates, and exports back-off n-gram
// language models in the ARPA exchange format.
//
// The package owns an n-gram trie, a family of discounting algorithms
// (Good-Turing, Witten-Bell, Kneser-Ney, Modified Kneser-Ney, Add-delta,
// Natural, and constant discounting), the back-off weight normaliser that
// keeps every context a proper probability distribution, Stolcke entropy
// pruning, and linear/log-linear/Bayesian model mixing.
//
// Tokenisation, the word-id dictionary, CLI handling and file I/O are not
// part of this package: callers hand it pre-tokenised word-id sequences and
// a word_of callback, and receive log10 probabilities and back-off weights
// back. See Trie, Estimator and Trie.EmitARPA for the three stages of a
// typical pipeline: ingest counts, estimate, export.
package arpalm
