// Package ir provides the typed cell values shared by every querydeck layer.
//
// Predicates carry ir values as literals, the execution target returns rows
// of ir values, and bulk assignments are expressed in ir values. ir imports
// nothing internal so it stays the foundational layer.
//
// Key constraints:
//   - IRFloat exists only for aggregate results; canonical encoding rejects it
//   - Canonical encoding (MarshalCanonical) is the only input to fingerprints
//   - IRNull is an explicit value, never a nil interface, once decoded
package ir
