// Package chat holds the request-side data model shared by every estimator
// component: messages made of typed content parts, tool definitions and model
// descriptors.
package chat

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartKind discriminates content parts. It is folded into message digests so
// two parts of different kinds never collide on equal payloads.
type PartKind string

const (
	KindText       PartKind = "text"
	KindData       PartKind = "data"
	KindToolCall   PartKind = "tool_call"
	KindToolResult PartKind = "tool_result"
)

// Part is one content part of a message. The set of implementations is closed;
// callers switch over TextPart, DataPart, ToolCallPart and ToolResultPart.
type Part interface {
	Kind() PartKind
	isPart()
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

// DataPart is binary content such as an image, tagged with its media type.
type DataPart struct {
	MediaType string
	Data      []byte
}

// ToolCallPart is a tool invocation requested by the model.
type ToolCallPart struct {
	Name   string
	CallID string
	Input  map[string]any
}

// ToolResultPart carries the output of a tool call back to the model.
type ToolResultPart struct {
	CallID  string
	Content []string
}

func (TextPart) Kind() PartKind       { return KindText }
func (DataPart) Kind() PartKind       { return KindData }
func (ToolCallPart) Kind() PartKind   { return KindToolCall }
func (ToolResultPart) Kind() PartKind { return KindToolResult }

func (TextPart) isPart()       {}
func (DataPart) isPart()       {}
func (ToolCallPart) isPart()   {}
func (ToolResultPart) isPart() {}

// IsImage reports whether the part carries an image payload.
func (p DataPart) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(p.MediaType), "image/")
}

// SerializedInput returns the JSON form of the tool input. Map keys are
// emitted in sorted order so the result is stable across calls.
func (p ToolCallPart) SerializedInput() string {
	if len(p.Input) == 0 {
		return "{}"
	}
	b, err := json.Marshal(p.Input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Message is a role plus an ordered list of content parts.
type Message struct {
	Role  Role
	Parts []Part
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// Tool is a tool definition offered to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// SerializedSchema returns the JSON form of the input schema.
func (t Tool) SerializedSchema() string {
	if len(t.InputSchema) == 0 {
		return ""
	}
	b, err := json.Marshal(t.InputSchema)
	if err != nil {
		return ""
	}
	return string(b)
}

// Model describes the target of a request.
type Model struct {
	ID             string `json:"id"`
	Family         string `json:"family"`
	MaxInputTokens int    `json:"maxInputTokens"`
}
