// Package estimator composes the counter, ground-truth cache, conversation
// tracker, calibration manager and call-sequence tracker into one facade that
// answers "how many input tokens will this request use".
package estimator

import (
	"math"

	"github.com/wycats/SferaDev-sub001/pkg/calibration"
	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/conversation"
	"github.com/wycats/SferaDev-sub001/pkg/estimate"
	"github.com/wycats/SferaDev-sub001/pkg/groundtruth"
	"github.com/wycats/SferaDev-sub001/pkg/logging"
	"github.com/wycats/SferaDev-sub001/pkg/sequence"
	"github.com/wycats/SferaDev-sub001/pkg/tokens"
)

// MessageOverhead is the structural cost added per message.
const MessageOverhead = 4

// Usable fractions of a model's input limit, by calibration confidence.
const (
	LimitMultiplierLow    = 0.75
	LimitMultiplierMedium = 0.85
	LimitMultiplierHigh   = 0.95
)

// ConversationSource says how a conversation estimate was produced.
type ConversationSource string

const (
	SourceExact     ConversationSource = "exact"
	SourceDelta     ConversationSource = "delta"
	SourceEstimated ConversationSource = "estimated"
)

// ConversationEstimate is the token estimate for a whole message list.
// KnownTokens is the part the provider already reported; EstimatedTokens is
// the part computed locally.
type ConversationEstimate struct {
	Tokens          int                `json:"tokens"`
	KnownTokens     int                `json:"knownTokens"`
	EstimatedTokens int                `json:"estimatedTokens"`
	NewMessageCount int                `json:"newMessageCount"`
	Source          ConversationSource `json:"source"`
}

// EffectiveLimit is the usable share of a model's input limit.
type EffectiveLimit struct {
	Limit      int                 `json:"limit"`
	Confidence estimate.Confidence `json:"confidence"`
}

// CalibrationStatus summarizes a family's calibration.
type CalibrationStatus struct {
	State      calibration.State   `json:"state"`
	Calibrated bool                `json:"calibrated"`
	Confidence estimate.Confidence `json:"confidence"`
}

// Config wires a Hybrid. Nil components are created with defaults.
type Config struct {
	Counter       *tokens.Counter
	Cache         *groundtruth.Cache
	Conversations *conversation.Tracker
	Calibration   *calibration.Manager
	Sequences     *sequence.Tracker
	Logger        logging.Logger
}

// Hybrid is the estimator facade. It is synchronous and not safe for
// concurrent use; hosts serialize calls per model family and conversation.
type Hybrid struct {
	counter       *tokens.Counter
	cache         *groundtruth.Cache
	conversations *conversation.Tracker
	calibration   *calibration.Manager
	sequences     *sequence.Tracker
	logger        logging.Logger
}

// New creates a Hybrid.
func New(cfg Config) *Hybrid {
	logger := logging.OrDisabled(cfg.Logger)
	if cfg.Counter == nil {
		cfg.Counter = tokens.NewCounter(tokens.CounterConfig{Logger: logger})
	}
	if cfg.Cache == nil {
		cfg.Cache = groundtruth.New(groundtruth.DefaultCapacity, nil)
	}
	if cfg.Conversations == nil {
		cfg.Conversations = conversation.NewTracker(conversation.Config{Logger: logger})
	}
	if cfg.Calibration == nil {
		cfg.Calibration = calibration.NewManager(calibration.Config{Logger: logger})
	}
	if cfg.Sequences == nil {
		cfg.Sequences = sequence.NewTracker(sequence.DefaultGap, nil)
	}
	return &Hybrid{
		counter:       cfg.Counter,
		cache:         cfg.Cache,
		conversations: cfg.Conversations,
		calibration:   cfg.Calibration,
		sequences:     cfg.Sequences,
		logger:        logger.With("component", "estimator"),
	}
}

// EstimateConversation estimates messages for model. A list the provider has
// already reported is answered from that report; a list extending one is
// answered from the report plus an estimate of the new tail only; anything
// else is estimated in full.
func (h *Hybrid) EstimateConversation(messages []chat.Message, model chat.Model, conversationID string) ConversationEstimate {
	match := h.conversations.Lookup(messages, model.Family, conversationID)

	switch match.Type {
	case conversation.MatchExact:
		return ConversationEstimate{
			Tokens:      match.KnownTokens,
			KnownTokens: match.KnownTokens,
			Source:      SourceExact,
		}
	case conversation.MatchPrefix:
		estimated := 0
		for _, i := range match.NewMessageIndices {
			estimated += h.counter.EstimateMessage(messages[i], model.Family) + MessageOverhead
		}
		return ConversationEstimate{
			Tokens:          match.KnownTokens + estimated,
			KnownTokens:     match.KnownTokens,
			EstimatedTokens: estimated,
			NewMessageCount: len(match.NewMessageIndices),
			Source:          SourceDelta,
		}
	default:
		estimated := 0
		for _, msg := range messages {
			estimated += h.counter.EstimateMessage(msg, model.Family) + MessageOverhead
		}
		return ConversationEstimate{
			Tokens:          estimated,
			EstimatedTokens: estimated,
			NewMessageCount: len(messages),
			Source:          SourceEstimated,
		}
	}
}

// EstimateMessage estimates one message: a cached provider count if there is
// one, else the counter estimate scaled by the family's correction factor,
// else the raw counter estimate. The result joins the current call sequence.
func (h *Hybrid) EstimateMessage(msg chat.Message, model chat.Model) estimate.TokenEstimate {
	if n, ok := h.cache.Get(msg, model.Family); ok {
		return h.record(estimate.TokenEstimate{
			Tokens:     n,
			Confidence: estimate.ConfidenceHigh,
			Source:     estimate.SourceAPIActual,
			Margin:     estimate.MarginActual,
		})
	}
	return h.record(h.counted(h.counter.CountMessage(msg, model.Family), model.Family))
}

// EstimateText estimates bare text, skipping the ground-truth tier.
func (h *Hybrid) EstimateText(text string, model chat.Model) estimate.TokenEstimate {
	return h.record(h.counted(h.counter.CountText(text, model.Family), model.Family))
}

func (h *Hybrid) counted(count tokens.Count, family string) estimate.TokenEstimate {
	raw := count.Tokens
	confidence := h.calibration.Confidence(family)
	if _, ok := h.calibration.Calibration(family); ok {
		factor := h.calibration.CorrectionFactor(family)
		return estimate.TokenEstimate{
			Tokens:     tokens.Ceil(float64(raw) * factor),
			Confidence: confidence,
			Source:     estimate.SourceCalibrated,
			Margin:     estimate.MarginFor(estimate.SourceCalibrated, confidence),
		}
	}
	source := estimate.SourceTokenizer
	if count.Fallback || !h.counter.UsesTokenizer(family) {
		source = estimate.SourceFallback
	}
	return estimate.TokenEstimate{
		Tokens:     raw,
		Confidence: confidence,
		Source:     source,
		Margin:     estimate.MarginFor(source, confidence),
	}
}

func (h *Hybrid) record(est estimate.TokenEstimate) estimate.TokenEstimate {
	h.sequences.OnCall(est)
	return est
}

// RecordActual feeds back the input-token count the provider reported for
// messages. It updates the conversation state, calibrates the family against
// the total of the current call sequence, and starts a fresh sequence.
// When the report extends a known conversation by exactly one message, the
// difference is remembered as that message's ground truth.
func (h *Hybrid) RecordActual(messages []chat.Message, model chat.Model, actualTokens int, conversationID string) {
	if actualTokens <= 0 {
		h.logger.Warn("ignoring non-positive actual token count", "family", model.Family, "actual", actualTokens)
		return
	}

	if prior := h.conversations.Peek(messages, model.Family, conversationID); prior.Type == conversation.MatchPrefix && len(prior.NewMessageIndices) == 1 {
		if delta := actualTokens - prior.KnownTokens - MessageOverhead; delta > 0 {
			h.cache.Put(messages[prior.NewMessageIndices[0]], model.Family, delta)
		}
	}
	h.conversations.RecordActual(messages, model.Family, actualTokens, conversationID)

	seq := h.sequences.Current()
	if seq == nil || seq.TotalEstimate <= 0 {
		h.logger.Debug("no call sequence to calibrate against", "family", model.Family)
		return
	}
	h.calibration.Calibrate(model.Family, seq.TotalEstimate, actualTokens)
	h.sequences.Reset()
}

// RecordMessageActual remembers a provider-reported count for one message.
func (h *Hybrid) RecordMessageActual(msg chat.Message, model chat.Model, tokens int) {
	h.cache.Put(msg, model.Family, tokens)
}

// EffectiveLimit returns the share of model's input limit that is safe to
// fill given the family's calibration confidence. It never reaches 100%.
func (h *Hybrid) EffectiveLimit(model chat.Model) EffectiveLimit {
	confidence := h.calibration.Confidence(model.Family)
	multiplier := LimitMultiplierLow
	switch confidence {
	case estimate.ConfidenceHigh:
		multiplier = LimitMultiplierHigh
	case estimate.ConfidenceMedium:
		multiplier = LimitMultiplierMedium
	}
	return EffectiveLimit{
		Limit:      int(math.Floor(float64(model.MaxInputTokens)*multiplier + 1e-9)),
		Confidence: confidence,
	}
}

// CountTools estimates tool definitions for model.
func (h *Hybrid) CountTools(tools []chat.Tool, model chat.Model) int {
	return h.counter.CountTools(tools, model.Family)
}

// CountSystemPrompt estimates a system prompt for model.
func (h *Hybrid) CountSystemPrompt(text string, model chat.Model) int {
	return h.counter.CountSystemPrompt(text, model.Family)
}

// CalibrationStatus reports family's calibration.
func (h *Hybrid) CalibrationStatus(family string) CalibrationStatus {
	state, ok := h.calibration.Calibration(family)
	if !ok {
		state = calibration.State{ModelFamily: family, CorrectionFactor: 1.0}
	}
	return CalibrationStatus{
		State:      state,
		Calibrated: ok,
		Confidence: h.calibration.Confidence(family),
	}
}

// Calibration exposes the calibration manager for inspection and resets.
func (h *Hybrid) Calibration() *calibration.Manager {
	return h.calibration
}

// CurrentSequence returns the in-progress call sequence, or nil.
func (h *Hybrid) CurrentSequence() *sequence.Sequence {
	return h.sequences.Current()
}
