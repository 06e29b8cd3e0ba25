package provider

type ID string

const (
	OpenAI   ID = "openai"
	Together ID = "together"
	Gemini   ID = "gemini"
)

// Descriptor holds the invocation parameters of one backend. Loaded once
// at startup, never mutated afterwards.
type Descriptor struct {
	ID              ID
	DisplayName     string
	Model           string
	MaxOutputTokens int
	Temperature     float32
	// Endpoint is empty when calls route through a credential-injecting
	// proxy configured on the client itself
	Endpoint string
}

const (
	defaultMaxOutputTokens = 4000
	defaultTemperature     = 0.7
)
