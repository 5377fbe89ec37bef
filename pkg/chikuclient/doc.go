// Package chikuclient provides a reusable client for the Chiku command
// backend.
//
// Client issues one HTTP request per command. Stream keeps a websocket open
// and matches replies to requests by request id.
package chikuclient
