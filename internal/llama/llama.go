package llama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/newsdesk-ai/cronkite/backend"
)

const (
	promptPreamble = `This is a conversation between User and Llama, a friendly chatbot. Llama is helpful, kind, honest, good at writing, and never fails to answer any requests immediately and with precision.

User:`
	promptSuffix = `
Llama:`

	imagePreamble = `A chat between a curious human and an artificial intelligence assistant. The assistant gives helpful, detailed, and polite answers to the human's questions.
USER:`
	imageSuffix = `
ASSISTANT:`
)

type jsonmap map[string]any

// These were lifted from the web inspector for the server UI
var defaultparams = jsonmap{
	"n_predict":         1024,
	"n_probs":           0,
	"temperature":       0.7,
	"stop":              []string{"</s>", "Llama:", "User:"},
	"repeat_last_n":     256,
	"repeat_penalty":    1.18,
	"top_k":             40,
	"top_p":             0.5,
	"tfs_z":             1,
	"typical_p":         1,
	"presence_penalty":  0,
	"frequency_penalty": 0,
	"mirostat":          0,
	"mirostat_tau":      5,
	"mirostat_eta":      0.1,
	"grammar":           "",
	"slot_id":           -1,
	"cache_prompt":      true,
}

type llama struct {
	srvAddr string
	seed    int

	client *http.Client
}

var _ backend.Backend = &llama{}

func Init(srvAddr string, seed int, httpClient *http.Client) *llama {
	return &llama{
		srvAddr: srvAddr,
		seed:    seed,
		client:  httpClient,
	}
}

func (l *llama) Name() string { return "llama" }

func (l *llama) Model() string { return "llama-server" }

func (l *llama) IsHealthy() bool {
	resp, err := l.client.Get(l.srvAddr)
	if err != nil {
		return false
	}

	return resp.StatusCode == http.StatusOK
}

func (l *llama) Complete(ctx context.Context, prompt string) (string, error) {
	return l.sendRequest(ctx, promptPreamble+prompt+promptSuffix, false, jsonmap{})
}

// Transcribe is unsupported, llama.cpp server has no audio endpoint.
func (l *llama) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "", backend.ErrNotSupported
}

func (l *llama) DescribeImage(ctx context.Context, image []byte) (string, error) {
	imb64 := base64.StdEncoding.EncodeToString(image)
	return l.sendRequest(ctx, imagePreamble+"[img-10]please describe this image in detail"+imageSuffix, false, jsonmap{
		"image_data": []jsonmap{
			{
				"data": imb64, "id": 10,
			},
		},
	})
}

func (l *llama) sendRequest(ctx context.Context, prompt string, stream bool, keys jsonmap) (string, error) {
	data := maps.Clone(defaultparams)
	maps.Copy(data, keys)
	data["prompt"] = prompt
	data["stream"] = stream
	data["seed"] = l.seed

	buf := bytes.NewBuffer(make([]byte, 0, 2_000_000)) // The buffer will be resized by Encode
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(&data)
	if err != nil {
		return "", err
	}
	br := bytes.NewReader(buf.Bytes())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.srvAddr+"/completion", br)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	content := new(bytes.Buffer)
	respbody := struct {
		Content string
		Stop    bool
	}{}

	lr := bufio.NewScanner(resp.Body)
	for !respbody.Stop {
		// Read in one line
		if !lr.Scan() {
			return "", lr.Err()
		}
		line := lr.Text()
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewBufferString(line))
		if err := dec.Decode(&respbody); err != nil {
			return "", err
		}
		content.WriteString(respbody.Content)
	}

	return strings.TrimLeft(content.String(), " "), nil
}
