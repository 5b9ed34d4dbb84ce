// Package session owns worker<->main-process channel establishment helpers.
//
// Ownership boundary:
// - establishment timeouts and frame limits
// - hello/hello.ack control messages exchanged before framing starts
//
// The hello exchange is newline-delimited JSON. Once the ack is accepted
// the connection carries only frames (see package frame).
package session
