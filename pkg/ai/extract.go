package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/latticehq/lattice/internal/util"
)

// EntityExtractor extracts named entities from free text. The retrieval
// engine's entity seeding depends only on this narrow interface so the
// concrete completion service stays swappable and mockable.
//
// Returned names are untrusted strings: callers must resolve them against the
// graph themselves, they are never graph identifiers.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]string, error)
}

type extractedEntities struct {
	Entities []string `json:"entities" jsonschema_description:"Named entities mentioned in the question, exactly as written."`
}

// LLMEntityExtractor implements EntityExtractor using a GraphAIClient with
// structured output. The completion call is retried at most once on failure;
// after that the error is returned so the caller can fail closed.
type LLMEntityExtractor struct {
	client GraphAIClient
}

// NewLLMEntityExtractor creates an EntityExtractor backed by the given client.
func NewLLMEntityExtractor(client GraphAIClient) *LLMEntityExtractor {
	return &LLMEntityExtractor{client: client}
}

// ExtractEntities sends the text to the completion service and returns the
// extracted entity names. Empty and whitespace-only names are dropped.
func (e *LLMEntityExtractor) ExtractEntities(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(EntityExtractionPrompt, text)

	result, err := util.RetryWithContext(ctx, 2, func(ctx context.Context) (*extractedEntities, error) {
		var out extractedEntities
		err := e.client.GenerateCompletionWithFormat(
			ctx,
			"query_entities",
			"Extract named entities from the user question.",
			prompt,
			&out,
		)
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(result.Entities))
	for _, name := range result.Entities {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
