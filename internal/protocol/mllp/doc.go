// Package mllp owns the minimal lower layer protocol envelope.
//
// Ownership boundary:
// - start block / end block framing
// - chunked response accumulation with a byte ceiling
// - whole-frame reads for listeners
package mllp
