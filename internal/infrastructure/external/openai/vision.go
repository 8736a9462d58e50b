package openai

import (
	"context"
	"encoding/base64"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// RecognizePages reads text from JPEG page images with the vision model.
// It backs the PDF extractor when a document has no text layer.
func (s *Structurer) RecognizePages(ctx context.Context, pages [][]byte) (string, error) {
	const op = "recognize pages"

	prompt := s.prompts.PageOCR
	text, err := renderTemplate(prompt.UserTemplate, struct{ Pages int }{Pages: len(pages)})
	if err != nil {
		return "", classify(op, err)
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: text}}
	for _, page := range pages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(page),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	s.logger.Info("Recognizing pages with Vision API", zap.Int("pages", len(pages)))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.VisionModel,
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		s.logger.Error("Vision API call failed", zap.Error(err))
		return "", classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", malformed(op, errEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
