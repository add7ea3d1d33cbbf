package domain

// Preprocess selects how raw chapter text is prepared before it is
// interpolated into an action's prompt.
type Preprocess string

const (
	// PreprocessNone sends the chapter text as-is.
	PreprocessNone Preprocess = "none"
	// PreprocessTTSNormalize strips characters that trip up speech synthesis
	// (markup remnants, decorative symbols) before prompting.
	PreprocessTTSNormalize Preprocess = "tts-normalize"
)

// ProviderKind selects which AI backend an action targets.
type ProviderKind string

const (
	// ProviderGemini is the cloud LLM with file-upload semantics.
	ProviderGemini ProviderKind = "gemini"
	// ProviderLocal is the local OpenAI-chat-completions-shaped endpoint.
	ProviderLocal ProviderKind = "local"
)

// Action is a user-editable AI processing definition. Actions are parsed and
// validated once at load from the actions file; the pipeline treats them as
// read-only configuration.
type Action struct {
	Key        string       `json:"key" validate:"required"`
	Name       string       `json:"name" validate:"required"`
	Prompt     string       `json:"prompt" validate:"required"`
	Preprocess Preprocess   `json:"preprocess,omitempty" validate:"omitempty,oneof=none tts-normalize"`
	Provider   ProviderKind `json:"provider,omitempty" validate:"omitempty,oneof=gemini local"`
}

// Mode returns the action's key as a chapter processing mode.
func (a Action) Mode() Mode {
	return Mode(a.Key)
}
