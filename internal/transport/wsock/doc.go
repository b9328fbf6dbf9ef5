// Package wsock implements the relay transport roles over websocket
// connections.
//
// Endpoints are written as ws://host:port/path. A listening endpoint runs
// its own HTTP server with the socket on path and a plain-text health check
// on /health. Every accepted connection becomes a peer with a read pump and
// a write pump; the reply listener feeds requests from all peers into one
// queue shared by its contexts, and the publish listener runs a hub that
// fans each payload out to every subscribed peer.
//
// The implementation is organized into files for peers, the publish hub,
// listeners, origin checks, rate limiting and the dialing roles.
package wsock
