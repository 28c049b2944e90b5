package ai

import (
	"context"

	"github.com/google/generative-ai-go/genai"
)

// generator is the part of *genai.GenerativeModel the estimator uses.
// Tests substitute canned responses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}
