// Package client implements the client side of the protocol: a thin
// request/response wrapper over a single connection plus a subscriber
// stream.
//
// A Client owns exactly one connection and is strictly sequential; it
// performs no pooling, retries or timeouts. Error frames received from
// the server are surfaced verbatim as Go errors.
//
// Subscribe consumes the client's connection and returns a Subscriber
// whose NextMessage yields (channel, payload) pairs; the channel set
// can be changed while subscribed.
package client
