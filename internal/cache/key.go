package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// KeyInputs is the fixed, ordered set of fields spec §4.4 fingerprints:
// {model, messages, temperature, max_tokens, top_p, frequency_penalty,
// presence_penalty, response_format}. Field order is fixed by the struct
// below (Go's encoding/json preserves struct field order), booleans are
// normalized (HasX flags collapse to an explicit null/omission), and absent
// optional fields are omitted.
type KeyInputs struct {
	Model            string          `json:"model"`
	Messages         []KeyMessage    `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64         `json:"presence_penalty,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
}

// KeyMessage is the fingerprinted shape of a chat message.
type KeyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat mirrors providers.ResponseFormat without importing that
// package, to keep cache dependency-free of the provider/domain types.
type ResponseFormat struct {
	Type string `json:"type"`
}

// GenerateKey implements spec §4.4's generateKey: a stable, canonical hash
// of the fixed field set above. Same normalized inputs always produce the
// same key (tested by TestGenerateKeyDeterministic).
func GenerateKey(in KeyInputs) string {
	// encoding/json's map ordering concerns don't apply here since every
	// field above is a struct field or slice, never a map — Marshal output
	// is therefore already canonical and deterministic for equal inputs.
	b, err := json.Marshal(in)
	if err != nil {
		// KeyInputs contains no unmarshalable Go values (no funcs/chans).
		panic("cache: marshal key inputs: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
