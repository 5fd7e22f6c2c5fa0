package ai

import (
	"encoding/json"
	"testing"

	"cardforge/modules/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequestOmitsUnsetFields(t *testing.T) {
	body, err := json.Marshal(ChatRequest{
		Model:       "gpt-4o",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.7,
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))

	assert.Contains(t, fields, "model")
	assert.Contains(t, fields, "temperature")
	assert.Contains(t, fields, "stream")
	assert.NotContains(t, fields, "max_tokens")
	assert.NotContains(t, fields, "top_p")
	assert.NotContains(t, fields, "stop")

	message := fields["messages"].([]any)[0].(map[string]any)
	assert.NotContains(t, message, "name")
}

func TestStreamChunkIsDone(t *testing.T) {
	stop := "stop"

	assert.False(t, (&StreamChunk{}).IsDone())
	assert.False(t, (&StreamChunk{Choices: []ChatChoice{{}}}).IsDone())
	assert.True(t, (&StreamChunk{Choices: []ChatChoice{{FinishReason: &stop}}}).IsDone())
}

func TestParseSSELine(t *testing.T) {
	chunk, done, ok := parseSSELine(`data: {"id":"c1","choices":[{"index":0,"delta":{"content":"hel"}}]}` + "\n")
	require.True(t, ok)
	assert.False(t, done)
	require.NotNil(t, chunk)
	assert.Equal(t, "c1", chunk.ID)
	assert.Equal(t, "hel", chunk.Choices[0].Delta["content"])

	_, done, ok = parseSSELine("data: [DONE]\n")
	assert.True(t, ok)
	assert.True(t, done)

	_, _, ok = parseSSELine("\n")
	assert.False(t, ok)
	_, _, ok = parseSSELine(": comment\n")
	assert.False(t, ok)
	_, _, ok = parseSSELine("data: not json\n")
	assert.False(t, ok)
	_, _, ok = parseSSELine("event: error\n")
	assert.False(t, ok)
}

func TestStatusError(t *testing.T) {
	assert.NoError(t, statusError(200, nil))
	assert.ErrorIs(t, statusError(429, nil), ErrRateLimited)

	err := statusError(500, []byte("bad gateway sk-abcdefghijklmnopqrstuvwxyz123456"))
	assert.ErrorIs(t, err, ErrUpstream)

	var upstream *UpstreamStatusError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 500, upstream.StatusCode)
	assert.NotContains(t, upstream.Body, "abcdefghijklmnopqrstuvwxyz123456")
	assert.Contains(t, upstream.Body, "[REDACTED]")
}

func TestNewClientEnforcesEgressPolicy(t *testing.T) {
	policy := &security.Policy{Allowlist: []string{"api.openai.com"}}

	client, err := NewClient("https://api.openai.com/", "sk-test", policy)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com", client.BaseURL)

	_, err = NewClient("http://169.254.169.254", "sk-test", policy)
	assert.ErrorIs(t, err, security.ErrPrivateAddress)

	_, err = NewClient("https://evil.example", "sk-test", policy)
	assert.ErrorIs(t, err, security.ErrURLBlocked)

	_, err = NewClient("https://api.openai.com", "sk-test", nil)
	assert.ErrorIs(t, err, security.ErrURLBlocked)
}

func TestNewImageRequestDefaults(t *testing.T) {
	request := NewImageRequest("a duck in a hat")

	assert.Equal(t, "a duck in a hat", request.Prompt)
	assert.Equal(t, "dall-e-3", request.Model)
	assert.Equal(t, 1, request.N)
	assert.Equal(t, "1024x1024", request.Size)
	assert.Equal(t, "url", request.ResponseFormat)
}
