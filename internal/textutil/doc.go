// Package textutil provides filename sanitizing and search-term
// normalization helpers used by the sync and reconciliation engines.
package textutil
