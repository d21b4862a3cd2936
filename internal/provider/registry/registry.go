// Package registry holds the compile-time set of vendor adapters and the
// order they are registered in. Order matters: it is the order models are
// listed in and, for a duplicated model id, the adapter that wins.
package registry

import (
	"log"

	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/anthropic"
	"github.com/vnmchuo/llm-relay/internal/provider/deepseek"
	"github.com/vnmchuo/llm-relay/internal/provider/gemini"
	"github.com/vnmchuo/llm-relay/internal/provider/groq"
	"github.com/vnmchuo/llm-relay/internal/provider/openai"
	"github.com/vnmchuo/llm-relay/internal/provider/perplexity"
	"github.com/vnmchuo/llm-relay/internal/provider/xai"
)

type Factory func(provider.Config) provider.Provider

type Entry struct {
	ID  string
	New Factory
}

var Entries = []Entry{
	{ID: "openai", New: openai.New},
	{ID: "anthropic", New: anthropic.New},
	{ID: "gemini", New: gemini.New},
	{ID: "deepseek", New: deepseek.New},
	{ID: "groq", New: groq.New},
	{ID: "xai", New: xai.New},
	{ID: "perplexity", New: perplexity.New},
}

// IDs returns the provider ids in registration order.
func IDs() []string {
	ids := make([]string, len(Entries))
	for i, e := range Entries {
		ids[i] = e.ID
	}
	return ids
}

// Build constructs every adapter. Vendors with no configured key are still
// registered so their catalogs resolve; calls to them fail at the vendor.
func Build(configs map[string]provider.Config) []provider.Provider {
	providers := make([]provider.Provider, 0, len(Entries))
	for _, e := range Entries {
		cfg := configs[e.ID]
		if cfg.APIKey == "" {
			log.Printf("[registry] no api key configured for %s", e.ID)
		}
		providers = append(providers, e.New(cfg))
	}
	return providers
}
