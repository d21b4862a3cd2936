package groq

import "github.com/vnmchuo/llm-relay/internal/catalog"

// Every Groq model takes max_completion_tokens.
func text(id string, input, output float64) catalog.Model {
	return catalog.Model{
		ID:                       id,
		Modalities:               catalog.Text,
		TokenDivisor:             catalog.PerMillion,
		UsesCompletionTokenField: true,
		Pricing:                  catalog.FlatTokenPricing{Input: input, Output: output},
	}
}

// See https://groq.com/pricing/
var models = []catalog.Model{
	text("llama-4-scout", 1.00, 1.50),
	text("llama-4-maverick", 1.50, 2.00),
	text("llama-3.1-405b", 3.00, 3.00),
	text("llama-3.1-70b", 0.59, 0.79),
	text("llama-3.1-8b", 0.05, 0.08),
	text("kimi-k2", 1.00, 1.50),
	text("deepseek-r1-distill-llama-70b", 0.75, 0.99),
	text("deepseek-r1-distill-qwen-32b", 0.69, 0.69),
	text("gemma2-9b-it", 0.20, 0.20),
	text("llama-3.1-8b-instant", 0.05, 0.08),
	text("llama-3.2-1b-preview", 0.04, 0.04),
	text("llama-3.2-3b-preview", 0.06, 0.06),
	text("llama-3.3-70b-specdec", 0.59, 0.99),
	text("llama-3.3-70b-versatile", 0.59, 0.79),
	text("llama3-70b-8192", 0.59, 0.79),
	text("llama3-8b-8192", 0.05, 0.08),
	text("mistral-saba-24b", 0.79, 0.79),
	text("qwen-2.5-32b", 0.79, 0.79),
	text("qwen-2.5-coder-32b", 0.79, 0.79),
	text("qwen-qwq-32b", 0.29, 0.39),
}
