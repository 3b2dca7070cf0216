package estimator

import (
	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/estimate"
)

// Request is a whole chat request.
type Request struct {
	System   string
	Tools    []chat.Tool
	Messages []chat.Message
}

// RequestEstimate is the estimate of a whole Request. Total is comparable
// with the input-token count the provider reports for the request.
type RequestEstimate struct {
	Messages     []estimate.TokenEstimate `json:"messages"`
	SystemPrompt int                      `json:"systemPrompt,omitempty"`
	Tools        int                      `json:"tools,omitempty"`
	Conversation ConversationEstimate     `json:"conversation"`
	Total        int                      `json:"total"`
}

// EstimateRequest estimates every part of req as one render pass. Each
// message joins the call sequence through EstimateMessage; the system prompt,
// the tool definitions and the per-message overhead join it as one more call,
// so the sequence total equals Total for an uncalibrated family and
// RecordActual calibrates like against like.
//
// Provider reports cover the whole request, so when the conversation is
// already known the system prompt and tools are part of KnownTokens and are
// not added to Total again.
func (h *Hybrid) EstimateRequest(req Request, model chat.Model, conversationID string) RequestEstimate {
	out := RequestEstimate{Messages: make([]estimate.TokenEstimate, 0, len(req.Messages))}
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, h.EstimateMessage(msg, model))
	}
	out.SystemPrompt = h.CountSystemPrompt(req.System, model)
	out.Tools = h.CountTools(req.Tools, model)
	out.Conversation = h.EstimateConversation(req.Messages, model, conversationID)

	if overhead := out.SystemPrompt + out.Tools + MessageOverhead*len(req.Messages); overhead > 0 {
		source := estimate.SourceTokenizer
		if !h.counter.UsesTokenizer(model.Family) {
			source = estimate.SourceFallback
		}
		h.record(estimate.TokenEstimate{Tokens: overhead, Source: source})
	}

	out.Total = out.Conversation.Tokens
	if out.Conversation.Source == SourceEstimated {
		out.Total += out.SystemPrompt + out.Tools
	}
	return out
}
