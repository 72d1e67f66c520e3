// Package session owns the client side of an MLLP exchange.
//
// Ownership boundary:
// - dialing one TCP (optionally TLS) stream to a receiver
// - framed request write and bounded response read
// - transport/protocol error classification
// - connect retry backoff and transport security validation
//
// A Connection carries one outstanding exchange at a time and is not safe for
// concurrent use.
package session
