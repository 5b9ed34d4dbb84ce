// Package protocol owns the worker channel wire contract.
//
// Ownership boundary:
// - frame/header primitives (frame)
// - tlv payload primitives (tlv)
// - message types, field ids and required-field validation (schema)
// - pre-frame hello handshake and transport timeouts (session)
package protocol
