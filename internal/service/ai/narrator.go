package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mcp-weather/backend/internal/config"
)

const narratorSystemPrompt = `You are a friendly weather assistant. Rewrite the weather report below as a short, natural answer to the user's question.
Keep every number and unit exactly as given. Do not invent data that is not in the report. Answer in the language of the question.`

const narratorUserPrompt = `Question: {question}

Weather report:
{report}`

// Options carries per-request generation limits from the client.
type Options struct {
	MaxTokens   *int
	Temperature *float32
}

// Service rephrases formatted weather reports with a chat model.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   logrus.FieldLogger
}

// NewService creates the narrator backed by the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig, log logrus.FieldLogger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, log)
}

// NewServiceWithModel wires the narrator chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, log logrus.FieldLogger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(narratorSystemPrompt),
		schema.UserMessage(narratorUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile narrator chain: %w", err)
	}

	return &Service{
		chain: runnable,
		log:   log.WithField("component", "narrator"),
	}, nil
}

// Narrate returns a conversational version of report for question.
func (s *Service) Narrate(ctx context.Context, question, report string, opts Options) (string, error) {
	var modelOpts []model.Option
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		modelOpts = append(modelOpts, model.WithMaxTokens(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		modelOpts = append(modelOpts, model.WithTemperature(*opts.Temperature))
	}

	var invokeOpts []compose.Option
	if len(modelOpts) > 0 {
		invokeOpts = append(invokeOpts, compose.WithChatModelOption(modelOpts...))
	}

	response, err := s.chain.Invoke(ctx, map[string]any{
		"question": question,
		"report":   report,
	}, invokeOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to run narrator chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", fmt.Errorf("narrator returned empty content")
	}

	s.log.WithField("length", len(text)).Debug("narrated weather report")
	return text, nil
}
