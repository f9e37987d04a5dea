package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/newsdesk-ai/cronkite/backend"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// maxOutputTokens bounds every generation request.
const maxOutputTokens = 1024

type gemini struct {
	model string

	client *genai.Client
}

var _ backend.Backend = &gemini{}

func Init(apiKey, model string, httpClient *http.Client) (*gemini, error) {
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}

	return &gemini{
		model:  model,
		client: client,
	}, nil
}

func (g *gemini) Name() string { return "gemini" }

func (g *gemini) Model() string { return g.model }

func (g *gemini) IsHealthy() bool {
	// The Gemini API has no cheap unauthenticated ping. Assume healthy and
	// let the first generation surface any auth or connectivity error.
	return true
}

func (g *gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, []*genai.Part{genai.NewPartFromText(prompt)})
}

func (g *gemini) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return g.generate(ctx, []*genai.Part{
		genai.NewPartFromText("Transcribe the following audio. Provide only the transcribed text."),
		genai.NewPartFromBytes(audio, mimeType),
	})
}

func (g *gemini) DescribeImage(ctx context.Context, image []byte) (string, error) {
	return g.generate(ctx, []*genai.Part{
		genai.NewPartFromText("Describe this image in detail."),
		genai.NewPartFromBytes(image, http.DetectContentType(image)),
	})
}

func (g *gemini) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
