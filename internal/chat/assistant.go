// File path: internal/chat/assistant.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langgraphgo/graph"

	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/kb"
	"github.com/cascadia-pm/backoffice/internal/llm"
	"github.com/cascadia-pm/backoffice/internal/retrieval"
)

// Searcher is the retrieval contract the assistant consumes.
type Searcher interface {
	Search(ctx context.Context, query string) (retrieval.Result, error)
}

// Assistant answers landlord-tenant questions grounded in retrieved statute
// chunks. It never answers without sources: when retrieval comes back empty
// the assistant says so instead of letting the model guess.
type Assistant struct {
	provider llm.Provider
	searcher Searcher
}

// Answer is a grounded chat response. Sources are the chunks the answer was
// assembled from, in citation order.
type Answer struct {
	Question      string            `json:"question"`
	Answer        string            `json:"answer"`
	Intent        kb.Classification `json:"intent"`
	Sources       []kb.Chunk        `json:"sources"`
	LowConfidence bool              `json:"low_confidence"`
}

func NewAssistant(provider llm.Provider, searcher Searcher) *Assistant {
	return &Assistant{provider: provider, searcher: searcher}
}

// Ask runs the retrieve-then-respond graph for one question.
func (a *Assistant) Ask(ctx context.Context, question string) (Answer, error) {
	if a == nil || a.provider == nil || a.searcher == nil {
		return Answer{}, errors.New("chat assistant not initialised")
	}
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return Answer{}, errors.New("question required")
	}

	answer := Answer{Question: trimmed}

	workflow := graph.NewMessageGraph()
	workflow.AddNode("retrieve", func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		result, err := a.searcher.Search(ctx, trimmed)
		if err != nil {
			common.Logger().Warn("chat: retrieval failed", "error", err)
			return state, nil
		}
		answer.Intent = result.Intent
		answer.Sources = result.Chunks
		answer.LowConfidence = result.Degraded
		prompt := buildSystemPrompt(result)
		return append([]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, prompt),
		}, state...), nil
	})
	workflow.AddNode("respond", func(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
		reply, err := a.provider.Chat(ctx, messagesFromState(state))
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		answer.Answer = reply
		return append(state, llms.TextParts(llms.ChatMessageTypeAI, reply)), nil
	})
	workflow.AddEdge("retrieve", "respond")
	workflow.AddEdge("respond", graph.END)
	workflow.SetEntryPoint("retrieve")

	runnable, err := workflow.Compile()
	if err != nil {
		return Answer{}, fmt.Errorf("compile chat graph: %w", err)
	}
	if _, err := runnable.Invoke(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, trimmed),
	}); err != nil {
		return Answer{}, err
	}
	return answer, nil
}

// buildSystemPrompt frames the retrieved chunks as numbered citations the
// model must reference.
func buildSystemPrompt(result retrieval.Result) string {
	var builder strings.Builder
	builder.WriteString("You are a leasing assistant for an Oregon property-management company. ")
	builder.WriteString("Answer questions about Oregon landlord-tenant law using ONLY the numbered sources below. ")
	builder.WriteString("Cite sources inline as [1], [2], and so on. ")
	builder.WriteString("If the sources do not answer the question, say you do not have that information. ")
	builder.WriteString("You provide general information, not legal advice.\n\n")

	if len(result.Chunks) == 0 {
		builder.WriteString("No sources were found for this question. Tell the user you could not find relevant statute text and suggest they rephrase or consult the full Oregon Revised Statutes chapter 90.")
		return builder.String()
	}
	if result.Degraded {
		builder.WriteString("Note: the retrieved sources are weak matches. Begin your answer by saying you are not fully confident these passages address the question.\n\n")
	}
	builder.WriteString("Sources:\n")
	for i, chunk := range result.Chunks {
		builder.WriteString(fmt.Sprintf("[%d] %s\n%s\n\n", i+1, chunk.Label(), strings.TrimSpace(chunk.Content)))
	}
	return builder.String()
}

func messagesFromState(state []llms.MessageContent) []llm.Message {
	messages := make([]llm.Message, 0, len(state))
	for _, content := range state {
		text := textOf(content)
		if text == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: roleOf(content.Role), Content: text})
	}
	return messages
}

func textOf(content llms.MessageContent) string {
	var parts []string
	for _, part := range content.Parts {
		if text, ok := part.(llms.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func roleOf(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return "system"
	case llms.ChatMessageTypeAI:
		return "assistant"
	default:
		return "user"
	}
}
