// Package hexprot implements the Hexadecimal Serial Protocol, a
// symmetric request/response protocol carrying typed scalars, strings
// and arrays over a byte-oriented transport, with channel addressing
// and array sub-commands for streaming.
//
// The protocol engine is role-agnostic: an Initiator drives exchanges
// from the host side, a Responder serves them from the device side,
// and both sit on top of the same Frame and Transport.
package hexprot
