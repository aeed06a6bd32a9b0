package models

import "strings"

// Card describes the capabilities of a known model.
type Card struct {
	ID            string
	DisplayName   string
	Vision        bool
	FunctionCall  bool
	ContextTokens int
}

var knownCards = []Card{
	{ID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", FunctionCall: true, ContextTokens: 16385},
	{ID: "gpt-3.5-turbo-16k", DisplayName: "GPT-3.5 Turbo 16K", FunctionCall: true, ContextTokens: 16385},
	{ID: "gpt-4", DisplayName: "GPT-4", FunctionCall: true, ContextTokens: 8192},
	{ID: "gpt-4-32k", DisplayName: "GPT-4 32K", FunctionCall: true, ContextTokens: 32768},
	{ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Vision: true, FunctionCall: true, ContextTokens: 128000},
	{ID: "gpt-4-vision-preview", DisplayName: "GPT-4 Vision", Vision: true, ContextTokens: 128000},
	{ID: "gpt-4o", DisplayName: "GPT-4o", Vision: true, FunctionCall: true, ContextTokens: 128000},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Vision: true, FunctionCall: true, ContextTokens: 128000},
	{ID: "gemini-pro", DisplayName: "Gemini Pro", ContextTokens: 32768},
	{ID: "gemini-pro-vision", DisplayName: "Gemini Pro Vision", Vision: true, ContextTokens: 16384},
	{ID: "moonshot-v1-8k", DisplayName: "Moonshot v1 8K", ContextTokens: 8192},
	{ID: "moonshot-v1-32k", DisplayName: "Moonshot v1 32K", ContextTokens: 32768},
	{ID: "glm-4", DisplayName: "GLM-4", FunctionCall: true, ContextTokens: 128000},
	{ID: "glm-4v", DisplayName: "GLM-4V", Vision: true, ContextTokens: 8192},
	{ID: "llama3.2", DisplayName: "Llama 3.2", ContextTokens: 131072},
	{ID: "llava", DisplayName: "LLaVA", Vision: true, ContextTokens: 4096},
}

// LookupCard returns the capability card for a model id. Unknown ids return
// a zero card: no vision, no function calling.
func LookupCard(modelID string) Card {
	for _, card := range knownCards {
		if card.ID == modelID {
			return card
		}
	}
	// Dated snapshots like gpt-4o-2024-05-13 inherit the base model's card.
	for _, card := range knownCards {
		if strings.HasPrefix(modelID, card.ID+"-") {
			return Card{
				ID:            modelID,
				DisplayName:   card.DisplayName,
				Vision:        card.Vision,
				FunctionCall:  card.FunctionCall,
				ContextTokens: card.ContextTokens,
			}
		}
	}
	return Card{ID: modelID}
}

// KnownCards returns a copy of the capability table.
func KnownCards() []Card {
	out := make([]Card, len(knownCards))
	copy(out, knownCards)
	return out
}
