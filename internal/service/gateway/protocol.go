package gateway

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/mcp-weather/backend/internal/service/ai"
)

// MessagesPath is where clients continue a streaming exchange.
const MessagesPath = "/v1/mcp/messages/"

// Request is the body accepted by both protocol phases.
type Request struct {
	Model       string            `json:"model,omitempty"`
	Messages    []*schema.Message `json:"messages,omitempty"`
	Stream      *bool             `json:"stream,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Temperature *float32          `json:"temperature,omitempty"`

	// contentSet records that the first decoded message carried a content
	// key, even an empty one.
	contentSet bool
}

// UnmarshalJSON decodes the body and remembers whether the first message
// had a content key.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var raw struct {
		Messages []map[string]json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Request(decoded)
	if len(raw.Messages) > 0 {
		_, r.contentSet = raw.Messages[0]["content"]
	}
	return nil
}

// Streaming reports whether the client asked for the two-phase flow.
// An absent flag means yes.
func (r Request) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// Query returns the content of the first message, or "".
func (r Request) Query() string {
	if len(r.Messages) == 0 || r.Messages[0] == nil {
		return ""
	}
	return r.Messages[0].Content
}

// Override returns the query that replaces a session's stored one. A
// decoded body overrides whenever its first message has a content key, even
// when that content is empty.
func (r Request) Override() (string, bool) {
	if r.contentSet {
		return r.Query(), true
	}
	if content := r.Query(); content != "" {
		return content, true
	}
	return "", false
}

// Options extracts the generation limits for the narrator.
func (r Request) Options() ai.Options {
	return ai.Options{MaxTokens: r.MaxTokens, Temperature: r.Temperature}
}

// Message is an assistant message in a completion payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one entry of a completion payload. Stream frames use Delta,
// direct answers use Message.
type Choice struct {
	Message      *Message `json:"message,omitempty"`
	Delta        *Message `json:"delta,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

// Completion is the chat-completion shaped payload returned to clients.
type Completion struct {
	Choices []Choice `json:"choices"`
}

const finishStop = "stop"

func answerCompletion(content string) Completion {
	return Completion{Choices: []Choice{{
		Message:      &Message{Role: string(schema.Assistant), Content: content},
		FinishReason: finishStop,
	}}}
}

func deltaFrame(content string) Completion {
	return Completion{Choices: []Choice{{
		Delta: &Message{Role: string(schema.Assistant), Content: content},
	}}}
}

func stopFrame() Completion {
	return Completion{Choices: []Choice{{FinishReason: finishStop}}}
}

// EndpointFor builds the follow-up URL announced for a session.
func EndpointFor(sessionID string) string {
	return MessagesPath + "?session_id=" + sessionID
}
