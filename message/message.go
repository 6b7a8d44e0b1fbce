// Package message defines the JSON envelope exchanged with the browser extension.
//
// Every frame on the channel carries exactly one Message. The envelope is the
// "letter" for one RPC exchange:
//
//   - Request:  ID, Method and Params are set, Result and Error are empty.
//   - Response: ID echoes the request, and either Result or Error is set.
//
// The ID is how a response finds its way back to the caller that sent the
// matching request; anything arriving with an unknown or absent ID is dropped.
package message

import (
	"encoding/json"
	"fmt"
)

// Message carries the data for a single request or response.
type Message struct {
	ID     int             `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewRequest builds a request envelope, serializing params to JSON.
// A nil params is sent as an empty object so the extension always sees
// a params field it can destructure.
func NewRequest(id int, method string, params any) (*Message, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	return &Message{ID: id, Method: method, Params: data}, nil
}

// NewResult builds a success response envelope for the given request ID.
func NewResult(id int, result any) (*Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Message{ID: id, Result: data}, nil
}

// NewError builds a failure response envelope for the given request ID.
func NewError(id int, msg string) *Message {
	return &Message{ID: id, Error: msg}
}

// IsResponse reports whether m looks like a reply to an earlier request:
// it carries an ID and either a result or an error. Notifications and
// peer-initiated requests return false.
func (m *Message) IsResponse() bool {
	return m.ID != 0 && (m.Result != nil || m.Error != "")
}
