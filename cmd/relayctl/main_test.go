package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/llm-relay/internal/auth"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestModels(t *testing.T) {
	out, err := run(t, "", "models", "--modality", "image")
	require.NoError(t, err)
	assert.Contains(t, out, "dall-e-3")
	assert.Contains(t, out, "imagen-3.0-generate-002")
	assert.NotContains(t, out, "gpt-4o-mini")

	_, err = run(t, "", "models", "--modality", "audio")
	assert.Error(t, err)
}

func TestProviders(t *testing.T) {
	out, err := run(t, "", "providers")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8, "header plus seven providers")
	assert.True(t, strings.HasPrefix(lines[0], "provider"))
	for _, name := range []string{"openai", "anthropic", "gemini", "deepseek", "groq", "xai", "perplexity"} {
		assert.Contains(t, out, name)
	}
}

func TestResolve(t *testing.T) {
	out, err := run(t, "", "resolve", "claude-3-5-haiku-20241022")
	require.NoError(t, err)
	assert.Equal(t, "anthropic\n", out)

	_, err = run(t, "", "resolve", "not-a-real-model")
	assert.Error(t, err)
}

func TestCost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.json")
	body := `{"content": [{"type": "text", "text": "hi"}], "usage": {"input_tokens": 1000, "output_tokens": 500}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := run(t, "", "cost", "claude-3-5-sonnet-20241022", path)
	require.NoError(t, err)
	assert.Contains(t, out, "cost_usd:     0.01050000")
	assert.Contains(t, out, "millicredits: 1050")
}

func TestCost_ImageFromStdin(t *testing.T) {
	out, err := run(t, `{"data": []}`, "cost", "dall-e-3", "-", "--n", "2", "--quality", "hd", "--size", "1792x1024")
	require.NoError(t, err)
	assert.Contains(t, out, "cost_usd:     0.24000000")
}

func TestCost_InvalidJSON(t *testing.T) {
	_, err := run(t, "not json", "cost", "gpt-4o-mini", "-")
	assert.Error(t, err)
}

func TestMillicredits(t *testing.T) {
	out, err := run(t, "", "millicredits", "0.000001")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = run(t, "", "millicredits", "0.05", "--price-per-credit", "0.005")
	require.NoError(t, err)
	assert.Equal(t, "10000\n", out)

	_, err = run(t, "", "millicredits", "abc")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	out, err := run(t, "", "token", "--secret", "s3cret", "--tenant", "t1", "--org", "o1")
	require.NoError(t, err)

	id, err := auth.NewTokenVerifier("s3cret").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{TenantID: "t1", OrgID: "o1"}, id)

	_, err = run(t, "", "token", "--secret", "s3cret")
	assert.Error(t, err)
}
