// Package server implements the network side of the chat relay.
//
// The TCP listener accepts length-prefixed JSON connections, the HTTP
// listener serves health, Prometheus metrics and a WebSocket gateway speaking
// the same protocol. Every connection becomes a chat.Session driven by one
// goroutine reading and one writing; routing is delegated to chat.Router.
package server
