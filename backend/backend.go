package backend

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by backends that do not implement a modality,
// e.g. audio transcription against a llama.cpp server.
var ErrNotSupported = errors.New("modality not supported by backend")

// Backend generates text from multimodal prompts using a specific LLM.
type Backend interface {
	// Name returns the name of the backing LLM, e.g. "gemini" or "llama"
	Name() string

	// Model returns the model identifier requests are issued against.
	Model() string

	// Complete runs a text-only prompt through the model and returns the
	// generated text. Output length is bounded by the backend's token budget.
	Complete(ctx context.Context, prompt string) (string, error)

	// Transcribe returns a transcription of the provided audio. The audio
	// data should be the full contents of the file including the header,
	// with mimeType identifying the container, e.g. "audio/wav".
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)

	// DescribeImage returns an English description of the provided image.
	// The image data should be the full contents of the file including the
	// header.
	DescribeImage(ctx context.Context, image []byte) (string, error)

	// IsHealthy returns whether the LLM server is healthy.
	IsHealthy() bool
}
