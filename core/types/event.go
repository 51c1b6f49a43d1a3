package types

// Event is the wire representation of a state change surfaced to RPC and
// websocket subscribers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
