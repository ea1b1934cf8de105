// Package depot exposes a client for the Depot object storage HTTP API.
// The client exchanges an API key for a session token via the service's
// anti-forgery handshake and attaches the token to every bucket-scoped file
// operation, transparently re-authenticating exactly once when a request is
// rejected with 401.
package depot
