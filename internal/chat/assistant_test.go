// File path: internal/chat/assistant_test.go
package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cascadia-pm/backoffice/internal/kb"
	"github.com/cascadia-pm/backoffice/internal/llm"
	"github.com/cascadia-pm/backoffice/internal/retrieval"
)

type fakeSearcher struct {
	result retrieval.Result
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (retrieval.Result, error) {
	return f.result, f.err
}

type capturingProvider struct {
	reply    string
	err      error
	messages []llm.Message
}

func (p *capturingProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	p.messages = messages
	return p.reply, p.err
}

func (p *capturingProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (p *capturingProvider) Name() string { return "capturing" }

func TestAskGroundsAnswerInSources(t *testing.T) {
	searcher := &fakeSearcher{result: retrieval.Result{
		Intent: kb.Classification{Intent: kb.IntentSectionLookup, Section: "90.300"},
		Chunks: []kb.Chunk{{
			ID:            "ors-90.300-0",
			Content:       "The landlord shall account for the deposit within 31 days.",
			SourceType:    kb.SourceStatute,
			SourceSection: "90.300",
		}},
	}}
	provider := &capturingProvider{reply: "Deposits must be accounted for within 31 days [1]."}
	assistant := NewAssistant(provider, searcher)

	answer, err := assistant.Ask(context.Background(), "what does ORS 90.300 say about deposits?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer.Answer != provider.reply {
		t.Fatalf("unexpected answer: %q", answer.Answer)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].ID != "ors-90.300-0" {
		t.Fatalf("unexpected sources: %+v", answer.Sources)
	}
	if answer.Intent.Intent != kb.IntentSectionLookup {
		t.Fatalf("intent = %s", answer.Intent.Intent)
	}

	if len(provider.messages) < 2 {
		t.Fatalf("expected system + user messages, got %d", len(provider.messages))
	}
	system := provider.messages[0]
	if system.Role != "system" {
		t.Fatalf("first message role = %s", system.Role)
	}
	if !strings.Contains(system.Content, "[1] ORS 90.300") {
		t.Fatalf("system prompt missing citation label:\n%s", system.Content)
	}
	last := provider.messages[len(provider.messages)-1]
	if last.Role != "user" || !strings.Contains(last.Content, "90.300") {
		t.Fatalf("question not forwarded: %+v", last)
	}
}

func TestAskFlagsLowConfidence(t *testing.T) {
	searcher := &fakeSearcher{result: retrieval.Result{
		Degraded: true,
		Chunks:   []kb.Chunk{{ID: "weak", Content: "text", SourceTitle: "Some policy"}},
	}}
	provider := &capturingProvider{reply: "I am not fully confident, but..."}
	assistant := NewAssistant(provider, searcher)

	answer, err := assistant.Ask(context.Background(), "something obscure")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !answer.LowConfidence {
		t.Fatal("expected low-confidence flag")
	}
	if !strings.Contains(provider.messages[0].Content, "not fully confident") {
		t.Fatal("system prompt must warn about weak matches")
	}
}

func TestAskSurvivesRetrievalFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("retrieval offline")}
	provider := &capturingProvider{reply: "I could not find relevant sources."}
	assistant := NewAssistant(provider, searcher)

	answer, err := assistant.Ask(context.Background(), "any question")
	if err != nil {
		t.Fatalf("retrieval failure must not fail the chat: %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(answer.Sources))
	}
	if answer.Answer == "" {
		t.Fatal("expected a reply even without sources")
	}
}

func TestAskPropagatesProviderError(t *testing.T) {
	searcher := &fakeSearcher{}
	provider := &capturingProvider{err: errors.New("model unavailable")}
	assistant := NewAssistant(provider, searcher)

	if _, err := assistant.Ask(context.Background(), "question"); err == nil {
		t.Fatal("expected provider error to surface")
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	assistant := NewAssistant(&capturingProvider{}, &fakeSearcher{})
	if _, err := assistant.Ask(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty question")
	}
}
