package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newsdesk-ai/cronkite/backend"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultModel       = "gpt-4o-mini"
	transcriptionModel = "whisper-1"
)

// maxCompletionTokens bounds every chat generation request.
const maxCompletionTokens = 1024

type openai struct {
	oac   oagc.Client
	model string

	rl *rateLimiter // For requests to the OpenAI API
}

var _ backend.Backend = &openai{}

func Init(apiKey, model string, httpClient *http.Client) *openai {
	if model == "" {
		model = defaultModel
	}

	return &openai{
		oac: oagc.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(httpClient),
		),
		model: model,
		rl:    newRateLimiter(20, time.Minute),
	}
}

func (o *openai) Name() string { return "openai" }

func (o *openai) Model() string { return o.model }

func (o *openai) IsHealthy() bool {
	// The hosted API is assumed reachable, failures surface on first use.
	return true
}

func (o *openai) Complete(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, []oagc.ChatCompletionMessageParamUnion{
		oagc.UserMessage(prompt),
	})
}

func (o *openai) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	// Rate limit use of the OpenAI API
	if err := o.rl.Acquire(ctx); err != nil {
		return "", err
	}

	resp, err := o.oac.Audio.Transcriptions.New(ctx, oagc.AudioTranscriptionNewParams{
		File:  oagc.File(bytes.NewReader(audio), audioFilename(mimeType), mimeType),
		Model: oagc.AudioModel(transcriptionModel),
	})
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", errors.New("transcription response is empty")
	}

	return resp.Text, nil
}

func (o *openai) DescribeImage(ctx context.Context, image []byte) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(image),
		base64.StdEncoding.EncodeToString(image))

	parts := []oagc.ChatCompletionContentPartUnionParam{
		oagc.TextContentPart("Describe this image in detail."),
		oagc.ImageContentPart(oagc.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}
	return o.chat(ctx, []oagc.ChatCompletionMessageParamUnion{
		oagc.UserMessage(parts),
	})
}

// audioFilename derives an upload filename from the mime type. The
// transcription endpoint detects the audio format from the filename
// extension, a bare name is rejected as an invalid format.
func audioFilename(mimeType string) string {
	ext, ok := map[string]string{
		"audio/wav":  ".wav",
		"audio/mpeg": ".mp3",
		"audio/mp4":  ".m4a",
		"audio/ogg":  ".ogg",
		"audio/flac": ".flac",
		"audio/webm": ".webm",
	}[mimeType]
	if !ok {
		ext = ".mp3"
	}
	return "audio" + ext
}

func (o *openai) chat(ctx context.Context, msgs []oagc.ChatCompletionMessageParamUnion) (string, error) {
	if err := o.rl.Acquire(ctx); err != nil {
		return "", err
	}

	resp, err := o.oac.Chat.Completions.New(ctx, oagc.ChatCompletionNewParams{
		Model:               oagc.ChatModel(o.model),
		Messages:            msgs,
		MaxCompletionTokens: oagc.Int(maxCompletionTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
