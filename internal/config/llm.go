package config

import "strings"

// LLMConfig captures the model, language, and prompt settings used by the
// transcription and summarization collaborators. The fields can be customized
// via the llm section of config.yaml; the API key and base URL come from the
// environment.
type LLMConfig struct {
	APIKey          string `json:"-" yaml:"-"`
	BaseURL         string `json:"base_url" yaml:"base_url"`
	TranscribeModel string `json:"transcribe_model" yaml:"transcribe_model"`
	ChatModel       string `json:"chat_model" yaml:"chat_model"`
	Language        string `json:"language" yaml:"language"`
	SummaryPrompt   string `json:"summary_prompt" yaml:"summary_prompt"`
}

const (
	defaultBaseURL         = "https://api.openai.com"
	defaultTranscribeModel = "whisper-1"
	defaultChatModel       = "gpt-4o-mini"
	defaultLanguage        = "pt"
)

// DefaultLLMConfig returns the baked-in model and prompt defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:         defaultBaseURL,
		TranscribeModel: defaultTranscribeModel,
		ChatModel:       defaultChatModel,
		Language:        defaultLanguage,
		SummaryPrompt: `Summarize the text delimited by ####.
The text is the transcript of a meeting.
Produce the output in the following format:

**Participants**:
- one bullet per participant identified in the transcript

**Meeting summary**:
- running prose covering the main topics, at most 300 characters

**Meeting agreements**:
- agreement 1
- agreement 2
- agreement n

**Action items**:
- what needs to be done and who is responsible for doing it`,
	}
}

// MergeLLMConfig overlays non-empty fields onto the base config.
func MergeLLMConfig(base LLMConfig, override LLMConfig) LLMConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = strings.TrimSpace(override.BaseURL)
	}
	if strings.TrimSpace(override.TranscribeModel) != "" {
		base.TranscribeModel = strings.TrimSpace(override.TranscribeModel)
	}
	if strings.TrimSpace(override.ChatModel) != "" {
		base.ChatModel = strings.TrimSpace(override.ChatModel)
	}
	if strings.TrimSpace(override.Language) != "" {
		base.Language = strings.TrimSpace(override.Language)
	}
	if strings.TrimSpace(override.SummaryPrompt) != "" {
		base.SummaryPrompt = override.SummaryPrompt
	}
	return base
}
