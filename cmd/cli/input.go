package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/estimator"
)

// requestFile is the on-disk shape of a request to estimate. YAML and JSON
// are both accepted.
type requestFile struct {
	System   string        `yaml:"system"`
	Tools    []toolFile    `yaml:"tools"`
	Messages []messageFile `yaml:"messages"`
}

type toolFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	InputSchema map[string]any `yaml:"input_schema"`
}

type messageFile struct {
	Role    string     `yaml:"role"`
	Content string     `yaml:"content"`
	Parts   []partFile `yaml:"parts"`
}

type partFile struct {
	Type      string         `yaml:"type"`
	Text      string         `yaml:"text"`
	MediaType string         `yaml:"media_type"`
	Data      string         `yaml:"data"`
	Name      string         `yaml:"name"`
	CallID    string         `yaml:"call_id"`
	Input     map[string]any `yaml:"input"`
	Content   []string       `yaml:"content"`
}

func readRequest(path string, stdin io.Reader) (*estimator.Request, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return parseRequest(data)
}

func parseRequest(data []byte) (*estimator.Request, error) {
	var f requestFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	req := &estimator.Request{System: f.System}
	for _, t := range f.Tools {
		req.Tools = append(req.Tools, chat.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	for i, m := range f.Messages {
		msg, err := m.toMessage()
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		req.Messages = append(req.Messages, msg)
	}
	return req, nil
}

func (m messageFile) toMessage() (chat.Message, error) {
	role := chat.Role(strings.ToLower(strings.TrimSpace(m.Role)))
	switch role {
	case chat.RoleSystem, chat.RoleUser, chat.RoleAssistant:
	case "":
		role = chat.RoleUser
	default:
		return chat.Message{}, fmt.Errorf("unknown role %q", m.Role)
	}

	msg := chat.Message{Role: role}
	if m.Content != "" {
		msg.Parts = append(msg.Parts, chat.TextPart{Text: m.Content})
	}
	for i, p := range m.Parts {
		part, err := p.toPart()
		if err != nil {
			return chat.Message{}, fmt.Errorf("part %d: %w", i, err)
		}
		msg.Parts = append(msg.Parts, part)
	}
	return msg, nil
}

func (p partFile) toPart() (chat.Part, error) {
	switch strings.ToLower(p.Type) {
	case "text", "":
		return chat.TextPart{Text: p.Text}, nil
	case "image", "data":
		data, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
		return chat.DataPart{MediaType: p.MediaType, Data: data}, nil
	case "tool_call":
		return chat.ToolCallPart{Name: p.Name, CallID: p.CallID, Input: p.Input}, nil
	case "tool_result":
		return chat.ToolResultPart{CallID: p.CallID, Content: p.Content}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", p.Type)
	}
}
