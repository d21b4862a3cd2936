package perplexity

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vnmchuo/llm-relay/internal/provider"
)

func TestGenerateStructuredData_SearchOptions(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"choices":[{"message":{"content":"Hello from Sonar mock!"}}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	}))
	defer server.Close()

	related := true
	p := &PerplexityProvider{apiKey: "test-key", baseURL: server.URL, client: http.DefaultClient}
	resp, err := p.GenerateStructuredData(context.Background(), &provider.Request{
		Model:  "sonar",
		Prompt: "summarize",
		System: "be terse",
		Data:   "doc",
		Params: provider.Params{
			SearchContextSize:      "high",
			SearchDomainFilter:     []string{"example.com"},
			ReturnRelatedQuestions: &related,
			StopSequences:          []string{"END"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateStructuredData failed: %v", err)
	}
	if resp.Content != "Hello from Sonar mock!" {
		t.Errorf("unexpected content %s", resp.Content)
	}

	messages := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("Expected system and a single user message, got %d", len(messages))
	}
	if got := messages[1].(map[string]any)["content"]; got != "summarize: \n\n\"doc\"" {
		t.Errorf("unexpected user content %q", got)
	}

	opts := captured["web_search_options"].(map[string]any)
	if opts["search_context_size"] != "high" {
		t.Errorf("unexpected web_search_options %v", opts)
	}
	if captured["return_related_questions"] != true {
		t.Errorf("Expected return_related_questions true")
	}
	if _, ok := captured["stop"]; ok {
		t.Errorf("stop must not be sent to perplexity")
	}
	if captured["model"] != "sonar" {
		t.Errorf("Expected model sonar, got %v", captured["model"])
	}
}

func TestCalculateCost_Reasoning(t *testing.T) {
	p := &PerplexityProvider{}

	plain := json.RawMessage(`{"usage":{"prompt_tokens":1000,"completion_tokens":1000}}`)
	cost, err := p.CalculateCost("sonar-deep-research", plain, provider.CostParams{})
	if err != nil {
		t.Fatalf("CalculateCost failed: %v", err)
	}
	if want := 0.005 + 0.002 + 0.008; math.Abs(cost-want) > 1e-12 {
		t.Errorf("Expected %v, got %v", want, cost)
	}

	withReasoning := json.RawMessage(`{"usage":{"prompt_tokens":1000,"completion_tokens":1000,"reasoning_tokens":2000}}`)
	cost, err = p.CalculateCost("sonar-deep-research", withReasoning, provider.CostParams{})
	if err != nil {
		t.Fatalf("CalculateCost failed: %v", err)
	}
	if want := 0.005 + 0.002 + 0.008 + 0.006; math.Abs(cost-want) > 1e-12 {
		t.Errorf("Expected %v, got %v", want, cost)
	}

	// r1-1776 has no per-request fee.
	cost, err = p.CalculateCost("r1-1776", plain, provider.CostParams{})
	if err != nil {
		t.Fatalf("CalculateCost failed: %v", err)
	}
	if want := 0.002 + 0.008; math.Abs(cost-want) > 1e-12 {
		t.Errorf("Expected %v, got %v", want, cost)
	}
}

func TestGenerateImage_Unsupported(t *testing.T) {
	p := New(provider.Config{})
	resp, err := p.GenerateImage(context.Background(), &provider.ImageRequest{Model: "sonar"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Status)
	}
}
