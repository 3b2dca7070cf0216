package tokens

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"

	"github.com/wycats/SferaDev-sub001/pkg/chat"
)

const (
	// GeminiImageTokens is the flat per-image cost Gemini reports.
	GeminiImageTokens = 258

	// MaxImageTokens caps the tile heuristic.
	MaxImageTokens = 1600

	imageBaseTokens = 85
	imageTileTokens = 170
	imageTileSize   = 512
	imageMaxSide    = 2048
	imageShortSide  = 768
)

// estimateImage prices an image part. Gemini bills a constant; other
// families are priced by 512px tiles after the usual downscaling, capped at
// MaxImageTokens. Undecodable images are priced at the cap.
func estimateImage(part chat.DataPart, family string) int {
	if IsGeminiFamily(family) {
		return GeminiImageTokens
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(part.Data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return MaxImageTokens
	}
	return tileTokens(cfg.Width, cfg.Height)
}

func tileTokens(width, height int) int {
	w, h := float64(width), float64(height)
	if longest := math.Max(w, h); longest > imageMaxSide {
		scale := imageMaxSide / longest
		w, h = w*scale, h*scale
	}
	if shortest := math.Min(w, h); shortest > imageShortSide {
		scale := imageShortSide / shortest
		w, h = w*scale, h*scale
	}
	tiles := int(math.Ceil(w/imageTileSize) * math.Ceil(h/imageTileSize))
	tokens := imageBaseTokens + imageTileTokens*tiles
	if tokens > MaxImageTokens {
		return MaxImageTokens
	}
	return tokens
}
