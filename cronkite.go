package cronkite

import (
	"fmt"
	"net/http"

	"github.com/newsdesk-ai/cronkite/backend"
	"github.com/newsdesk-ai/cronkite/internal/gemini"
	"github.com/newsdesk-ai/cronkite/internal/llama"
	"github.com/newsdesk-ai/cronkite/internal/openai"
)

type InitOptions struct {
	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey string
	OpenAIModel  string

	LlamaServer string
	LlamaSeed   int

	HttpClient *http.Client // if nil uses http.DefaultClient
}

type Cronkite struct {
	backend.Backend
}

func Init(cio InitOptions) (*Cronkite, error) {
	c := &Cronkite{}

	httpClient := cio.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var n int
	if cio.GeminiAPIKey != "" {
		n++
	}
	if cio.OpenAIAPIKey != "" {
		n++
	}
	if cio.LlamaServer != "" {
		n++
	}
	switch n {
	case 0:
		return nil, fmt.Errorf("no backend selected")
	case 1:
		// no-op
	default:
		return nil, fmt.Errorf("multiple backends selected, only one allowed")
	}

	if cio.GeminiAPIKey != "" {
		g, err := gemini.Init(cio.GeminiAPIKey, cio.GeminiModel, httpClient)
		if err != nil {
			return nil, fmt.Errorf("gemini init: %w", err)
		}
		c.Backend = g
	} else if cio.OpenAIAPIKey != "" {
		c.Backend = openai.Init(cio.OpenAIAPIKey, cio.OpenAIModel, httpClient)
	} else if cio.LlamaServer != "" {
		c.Backend = llama.Init(cio.LlamaServer, cio.LlamaSeed, httpClient)
	}

	return c, nil
}
