// Package models maps model identifiers to the descriptors the estimator
// needs: a tokenizer family and an input-token limit.
package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wycats/SferaDev-sub001/pkg/chat"
)

// FallbackMaxInputTokens is used when the model is completely unknown.
const FallbackMaxInputTokens = 128000

// Entry describes every model whose identifier starts with Prefix.
type Entry struct {
	Prefix         string `yaml:"prefix"`
	Family         string `yaml:"family"`
	MaxInputTokens int    `yaml:"max_input_tokens"`
}

// Uses prefix matching so "claude-sonnet-4" matches "claude-sonnet-4-20250514".
var defaultEntries = []Entry{
	// Anthropic
	{Prefix: "claude-opus-4", Family: "claude", MaxInputTokens: 200000},
	{Prefix: "claude-sonnet-4", Family: "claude", MaxInputTokens: 200000},
	{Prefix: "claude-3-7-sonnet", Family: "claude", MaxInputTokens: 200000},
	{Prefix: "claude-3-5", Family: "claude", MaxInputTokens: 200000},
	{Prefix: "claude", Family: "claude", MaxInputTokens: 200000},

	// OpenAI
	{Prefix: "gpt-4o", Family: "gpt-4o", MaxInputTokens: 128000},
	{Prefix: "gpt-4.1", Family: "gpt-4.1", MaxInputTokens: 1047576},
	{Prefix: "gpt-5", Family: "gpt-5", MaxInputTokens: 272000},
	{Prefix: "gpt-4-turbo", Family: "gpt-4", MaxInputTokens: 128000},
	{Prefix: "gpt-4", Family: "gpt-4", MaxInputTokens: 8192},
	{Prefix: "gpt-3.5-turbo", Family: "gpt-3.5-turbo", MaxInputTokens: 16385},
	{Prefix: "o1", Family: "o1", MaxInputTokens: 200000},
	{Prefix: "o3", Family: "o3", MaxInputTokens: 200000},
	{Prefix: "o4-mini", Family: "o4-mini", MaxInputTokens: 200000},

	// Google
	{Prefix: "gemini-2.5", Family: "gemini", MaxInputTokens: 1048576},
	{Prefix: "gemini-2.0", Family: "gemini", MaxInputTokens: 1048576},
	{Prefix: "gemini-1.5-pro", Family: "gemini", MaxInputTokens: 2097152},
	{Prefix: "gemini", Family: "gemini", MaxInputTokens: 1048576},

	// Local models (conservative defaults)
	{Prefix: "llama", Family: "llama", MaxInputTokens: 8192},
	{Prefix: "mistral", Family: "mistral", MaxInputTokens: 32768},
	{Prefix: "codellama", Family: "llama", MaxInputTokens: 16384},
	{Prefix: "deepseek", Family: "deepseek", MaxInputTokens: 32768},
	{Prefix: "qwen", Family: "qwen", MaxInputTokens: 32768},
}

// Registry resolves model identifiers by longest matching prefix.
type Registry struct {
	entries []Entry
}

// NewRegistry creates a registry seeded with the built-in entries.
func NewRegistry() *Registry {
	return &Registry{entries: append([]Entry(nil), defaultEntries...)}
}

// Add registers entries; later entries win over earlier ones with the same
// prefix.
func (r *Registry) Add(entries ...Entry) {
	for _, e := range entries {
		e.Prefix = strings.ToLower(strings.TrimSpace(e.Prefix))
		if e.Prefix == "" {
			continue
		}
		replaced := false
		for i := range r.entries {
			if r.entries[i].Prefix == e.Prefix {
				r.entries[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			r.entries = append(r.entries, e)
		}
	}
}

type overridesFile struct {
	Models []Entry `yaml:"models"`
}

// LoadOverrides reads a YAML file of the form
//
//	models:
//	  - prefix: my-model
//	    family: claude
//	    max_input_tokens: 100000
//
// and adds its entries.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model overrides: %w", err)
	}
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse model overrides: %w", err)
	}
	for i, e := range f.Models {
		if e.Family == "" || e.MaxInputTokens <= 0 {
			return fmt.Errorf("model override %d (%q) needs a family and a positive max_input_tokens", i, e.Prefix)
		}
	}
	r.Add(f.Models...)
	return nil
}

// Lookup returns the descriptor for modelID. A provider prefix such as
// "anthropic/" is ignored. Unknown models get a family derived from the
// first dash-separated segment and FallbackMaxInputTokens.
func (r *Registry) Lookup(modelID string) chat.Model {
	name := strings.ToLower(strings.TrimSpace(modelID))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var best *Entry
	for i := range r.entries {
		e := &r.entries[i]
		if strings.HasPrefix(name, e.Prefix) && (best == nil || len(e.Prefix) > len(best.Prefix)) {
			best = e
		}
	}
	if best != nil {
		return chat.Model{ID: modelID, Family: best.Family, MaxInputTokens: best.MaxInputTokens}
	}

	family := name
	if i := strings.Index(name, "-"); i > 0 {
		family = name[:i]
	}
	if family == "" {
		family = "unknown"
	}
	return chat.Model{ID: modelID, Family: family, MaxInputTokens: FallbackMaxInputTokens}
}
