package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/latticehq/lattice/internal/util"
	"github.com/latticehq/lattice/pkg/ai"
	"github.com/latticehq/lattice/pkg/query/distill"
)

// Answer executes the retrieval pipeline and synthesizes a final answer over
// the bundle. An empty-evidence bundle produces a grounded "not found"
// response instead of hallucinating; synthesis failures surface unchanged.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*Result, error) {
	result, err := o.Execute(ctx, req)
	if err != nil {
		return result, err
	}

	if result.Bundle.Empty {
		answer, err := o.ai.GenerateCompletion(ctx, fmt.Sprintf(ai.NoDataPrompt, req.QueryText))
		if err != nil {
			return result, fmt.Errorf("synthesis failed: %w", err)
		}
		result.Answer = answer
		return result, nil
	}

	prompt := fmt.Sprintf(ai.QueryPrompt, FormatEvidence(result.Bundle))
	msgs := []ai.ChatMessage{{Role: "user", Message: req.QueryText}}
	answer, err := o.ai.GenerateChat(ctx, msgs, ai.WithSystemPrompts(prompt))
	if err != nil {
		return result, fmt.Errorf("synthesis failed: %w", err)
	}
	result.Answer = util.NormalizeIDs(answer)
	return result, nil
}

// FormatEvidence renders a bundle in the layout the synthesis prompt
// describes: cited text evidence, cited extracted fields, then reasoning
// paths.
func FormatEvidence(bundle *EvidenceBundle) string {
	var text, fields, paths []string
	for _, u := range bundle.Chunks {
		switch u.Kind {
		case distill.KindChunk:
			text = append(text, fmt.Sprintf("[[%s]] %s", u.Citation.ID, u.Text))
		case distill.KindKeyValue:
			fields = append(fields, fmt.Sprintf("[[%s]] %s", u.Citation.ID, u.Text))
		case distill.KindPath:
			paths = append(paths, u.Text)
		}
	}

	var b strings.Builder
	if len(text) > 0 {
		b.WriteString("Text Evidence:\n")
		b.WriteString(strings.Join(text, "\n"))
		b.WriteString("\n\n")
	}
	if len(fields) > 0 {
		b.WriteString("Extracted Fields:\n")
		b.WriteString(strings.Join(fields, "\n"))
		b.WriteString("\n\n")
	}
	if len(paths) > 0 {
		b.WriteString("Reasoning Paths:\n")
		b.WriteString(strings.Join(paths, "\n"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
