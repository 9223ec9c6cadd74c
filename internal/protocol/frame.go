// Package protocol defines the JSON frames exchanged with the agent gateway
// over the chat WebSocket.
//
// Outbound (client -> server):
//
//	{"type":"message","content":"...","history":[...],"session_id":"..."}
//
// Inbound (server -> client), discriminated by "type":
//
//	{"type":"message"|"done","content"?:"...","full_response"?:"..."}
//	{"type":"chunk","content":"..."}
//	{"type":"tool_call","name":"...","args":{...}}
//	{"type":"tool_result","output":"..."}
//	{"type":"error","message":"..."}
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Frame types.
const (
	TypeMessage    = "message"
	TypeChunk      = "chunk"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
	TypeDone       = "done"
	TypeError      = "error"
)

// Message is one entry of conversation history. Immutable once created.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Frame is one JSON protocol frame. The gateway uses a single loosely-typed
// object for every frame kind; fields not relevant to a kind are omitted.
type Frame struct {
	Type         string          `json:"type"`
	Content      string          `json:"content,omitempty"`
	FullResponse string          `json:"full_response,omitempty"`
	Name         string          `json:"name,omitempty"`
	Args         json.RawMessage `json:"args,omitempty"`
	Output       string          `json:"output,omitempty"`
	ErrMessage   string          `json:"message,omitempty"`
	History      []Message       `json:"history,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
}

// NewChatRequest builds the outbound frame for a user message, carrying the
// prior history and the session it belongs to.
func NewChatRequest(content string, history []Message, sessionID string) *Frame {
	return &Frame{
		Type:      TypeMessage,
		Content:   content,
		History:   history,
		SessionID: sessionID,
	}
}

// Decode parses an inbound frame. It fails for non-JSON input and for JSON
// objects without a type discriminator; callers are expected to drop such
// frames rather than surface the error.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type discriminator")
	}
	return &f, nil
}
