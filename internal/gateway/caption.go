package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// RemoteCaptioner produces a natural-language description of a screenshot
// via a chat-completions-shaped VLM backend, grounded in the
// sashabaranov/go-openai message shapes used for chat completions in the
// pack. Captioning is always remote; there is no local VLM path.
//
// The request is posted directly rather than through openai.Client: the
// backend is a vLLM/sglang-compatible server expecting a repetition_penalty
// sampling field that go-openai's ChatCompletionRequest has no slot for.
type RemoteCaptioner struct {
	endpoint  string
	token     string
	model     string
	prompt    string
	forceJPEG bool
	client    *http.Client
	lim       *limiter
}

// NewRemoteCaptioner builds a RemoteCaptioner against endpoint (an
// OpenAI-compatible chat-completions server), bounded by concurrency
// in-flight requests.
func NewRemoteCaptioner(endpoint, token, model, prompt string, forceJPEG bool, concurrency int) *RemoteCaptioner {
	return &RemoteCaptioner{
		endpoint:  endpoint,
		token:     token,
		model:     model,
		prompt:    prompt,
		forceJPEG: forceJPEG,
		client:    &http.Client{},
		lim:       newLimiter(int64(concurrency)),
	}
}

// captionRequest mirrors the chat-completions wire shape plus the
// repetition_penalty sampling extension vLLM/sglang backends accept
// alongside temperature/top_p/max_tokens.
type captionRequest struct {
	Model             string                         `json:"model"`
	Messages          []openai.ChatCompletionMessage `json:"messages"`
	Temperature       float32                        `json:"temperature"`
	TopP              float32                        `json:"top_p"`
	RepetitionPenalty float64                        `json:"repetition_penalty"`
	MaxTokens         int                             `json:"max_tokens"`
}

type captionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Caption returns a natural-language description of image. Sampling
// parameters: temperature 0.1, top-p 0.8, repetition penalty 1.1, max
// tokens 1024.
func (c *RemoteCaptioner) Caption(ctx context.Context, img []byte) (string, error) {
	payload := img
	if c.forceJPEG {
		reencoded, err := reencodeJPEG(img)
		if err != nil {
			return "", fmt.Errorf("gateway: force_jpeg re-encode: %w", err)
		}
		payload = reencoded
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)

	var caption string
	err := c.lim.run(ctx, func() error {
		return withRetry(ctx, func() error {
			body, err := json.Marshal(captionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role: openai.ChatMessageRoleUser,
						MultiContent: []openai.ChatMessagePart{
							{Type: openai.ChatMessagePartTypeText, Text: c.prompt},
							{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
						},
					},
				},
				Temperature:       0.1,
				TopP:              0.8,
				RepetitionPenalty: 1.1,
				MaxTokens:         1024,
			})
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/chat/completions", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("caption backend returned status %d", resp.StatusCode)
			}
			var parsed captionResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return err
			}
			if len(parsed.Choices) == 0 {
				return fmt.Errorf("caption backend returned no choices")
			}
			caption = parsed.Choices[0].Message.Content
			return nil
		})
	})
	return caption, err
}

func reencodeJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
