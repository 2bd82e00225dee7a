package ollama

import (
	"context"
	"strings"

	"github.com/bryanwahyu/rxguard/internal/infra/ai/prompt"
)

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// ChatVision extracts text through /api/chat with the image attached to a user message.
type ChatVision struct{ c *Client }

// GenerateVision extracts text through /api/generate with the image attached.
type GenerateVision struct{ c *Client }

// ChatVision returns the chat-endpoint extraction strategy.
func (c *Client) ChatVision() ChatVision { return ChatVision{c: c} }

// GenerateVision returns the generate-endpoint extraction strategy.
func (c *Client) GenerateVision() GenerateVision { return GenerateVision{c: c} }

func (ChatVision) Name() string { return "chat" }

func (s ChatVision) Extract(ctx context.Context, imageBase64 string) (string, error) {
	req := chatRequest{
		Model: s.c.opts.VisionModel,
		Messages: []chatMessage{{
			Role:    "user",
			Content: prompt.VisionInstruction,
			Images:  []string{imageBase64},
		}},
		Stream: false,
	}
	var resp chatResponse
	if err := s.c.post(ctx, "/api/chat", req, &resp, s.c.target(s.c.opts.VisionModel, s.c.opts.VisionTimeout)); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

func (GenerateVision) Name() string { return "generate" }

func (s GenerateVision) Extract(ctx context.Context, imageBase64 string) (string, error) {
	req := generateRequest{
		Model:  s.c.opts.VisionModel,
		Prompt: prompt.VisionInstruction,
		Images: []string{imageBase64},
		Stream: false,
	}
	var resp generateResponse
	if err := s.c.post(ctx, "/api/generate", req, &resp, s.c.target(s.c.opts.VisionModel, s.c.opts.VisionTimeout)); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}
