// Package server implements the websocket relay of the chat backend.
//
// A connection is authenticated during the HTTP handshake, upgraded, and
// registered with the Hub, which runs one read and one write pump per
// client. Inbound events are decoded by the connection's Session and handed
// to the Relay, which owns the connection registry and the online-user set
// and addresses outbound frames to chat members. Messages are persisted in
// the background through a MessageStore.
package server
