// Package messaging implements the cross-context messaging channel that
// ships compiled filter patches from the process holding storage access to
// the process running the evaluator. Endpoints exchange typed envelopes over
// a Bus, perform a READY handshake to discover peers, and correlate
// request/response pairs by context id.
//
// Two Bus implementations exist: LocalBus for single-binary deployments and
// tests, and a websocket bus (Hub + WSBus) for split processes.
package messaging

import "encoding/json"

// TypeReady is the handshake message type. Each endpoint emits it on attach;
// receivers reply with their own READY the first time they see an unknown
// peer.
const TypeReady = "READY"

// Message is the wire envelope. To is empty for broadcasts; ContextID
// correlates a response with its pending request.
type Message struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content,omitempty"`
	From      string          `json:"from"`
	To        string          `json:"to,omitempty"`
	ContextID string          `json:"contextId,omitempty"`
}

// Bus carries envelopes between attached endpoints. Handlers may also see
// the poster's own messages depending on the implementation; endpoints filter
// by the From and To fields.
type Bus interface {
	// Attach registers a delivery handler and returns a detach function.
	Attach(fn func(Message)) (detach func())
	// Post delivers msg to all attached handlers.
	Post(msg Message) error
}
