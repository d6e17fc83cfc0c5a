package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shinyyama/support-chat-backend/internal/chatctx"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"google.golang.org/genai"
)

var ErrEmptyReply = errors.New("empty_reply")

// historyWindow bounds how much transcript is replayed into the prompt.
const historyWindow = 20

type Client struct {
	model string
}

func NewClient(model string) *Client {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{model: model}
}

const chatPrompt = `You are the automated support assistant of an online marketplace.
A customer asked a question inside their support-chat room. Answer it directly,
in the customer's language, in at most three short sentences.
If the question needs account-specific data you do not have, say a human agent
will follow up. Never invent order numbers, prices, or policies.`

// Reply generates an assistant answer for a triggering member message,
// grounding it on the recent room transcript.
func (c *Client) Reply(ctx context.Context, body string, history []model.Message) (string, error) {
	rid := chatctx.RID(ctx)
	start := time.Now()
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		log.Printf("[assistant] rid=%s stage=client_init err=%v", rid, err)
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(chatPrompt),
		genai.NewPartFromText(renderHistory(history)),
		genai.NewPartFromText(fmt.Sprintf("Customer question: %s", StripTrigger(body))),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	temp := float32(0.4)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}

	log.Printf("[assistant] rid=%s stage=gemini_start model=%s", rid, c.model)
	res, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		log.Printf("[assistant] rid=%s stage=gemini_fail model=%s err=%v", rid, c.model, err)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		log.Printf("[assistant] rid=%s stage=empty model=%s", rid, c.model)
		return "", ErrEmptyReply
	}
	log.Printf("[assistant] rid=%s stage=done model=%s len=%d totalMs=%d", rid, c.model, len(text), time.Since(start).Milliseconds())
	return text, nil
}

func renderHistory(history []model.Message) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s\n", m.SenderKind, m.Body)
	}
	return b.String()
}
