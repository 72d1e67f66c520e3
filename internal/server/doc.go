// Package server owns the receiving side of MLLP: an acknowledging
// listener plus its admin HTTP surface.
//
// Ownership boundary:
// - accept loop, per-connection frame loop, shutdown by context
// - handler dispatch and ACK/NAK replies
// - /health and /metrics over gin
package server
