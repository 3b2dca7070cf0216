// Package estimate defines the provenance-carrying result types returned by
// the estimator.
package estimate

// Confidence is a coarse trust tier for a model family's calibration.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Source says where a token count came from.
type Source string

const (
	SourceAPIActual  Source = "api-actual"
	SourceCalibrated Source = "calibrated"
	SourceTokenizer  Source = "tiktoken-like"
	SourceFallback   Source = "fallback"
)

// Margins applied on top of an estimate, by provenance.
const (
	MarginActual   = 0.0
	MarginHigh     = 0.05
	MarginMedium   = 0.10
	MarginLow      = 0.20
	MarginFallback = 0.30
)

// TokenEstimate is a single-message token count with its provenance.
type TokenEstimate struct {
	Tokens     int        `json:"tokens"`
	Confidence Confidence `json:"confidence"`
	Source     Source     `json:"source"`
	Margin     float64    `json:"margin"`
}

// MarginFor returns the safety fraction for an estimate of the given source
// and confidence.
func MarginFor(source Source, confidence Confidence) float64 {
	switch source {
	case SourceAPIActual:
		return MarginActual
	case SourceFallback:
		return MarginFallback
	}
	switch confidence {
	case ConfidenceHigh:
		return MarginHigh
	case ConfidenceMedium:
		return MarginMedium
	default:
		return MarginLow
	}
}
