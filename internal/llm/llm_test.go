package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkloom/internal/config"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{Err: errors.New("slow down")}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Content: `["a"]`},
	)
	resp, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, resp.Text())
	assert.Equal(t, 3, mock.CallCount())
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	down := MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}}
	mock := NewMockProvider(down, down, down, down)
	_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})
	var unavailable *ErrProviderUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 3, mock.CallCount())
}

func TestRetry_InvalidResponseRetriedOnce(t *testing.T) {
	bad := MockResponse{Err: &ErrInvalidResponse{Err: errors.New("bad json")}}
	mock := NewMockProvider(bad, bad, MockResponse{Content: "{}"})
	_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})
	var inv *ErrInvalidResponse
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRetry_UnknownErrorNotRetried(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: errors.New("boom")}, MockResponse{Content: "{}"})
	_, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{})
	require.EqualError(t, err, "boom")
	assert.Equal(t, 1, mock.CallCount())
}

func TestRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := NewMockProvider(MockResponse{Content: "{}"})
	_, err := WithRetry(mock, fastRetry()).Generate(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.CallCount())
}

type blockingProvider struct{ calls int }

func (b *blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	b.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingProvider) ModelID() string { return "blocking" }

func TestRetry_CallTimeoutIsRetried(t *testing.T) {
	cfg := fastRetry()
	cfg.MaxAttempts = 2
	cfg.CallTimeout = 5 * time.Millisecond
	bp := &blockingProvider{}
	_, err := WithRetry(bp, cfg).Generate(context.Background(), Request{})
	var unavailable *ErrProviderUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, bp.calls)
}

var listSchema = &Schema{
	Name: "test-keywords",
	Definition: map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string"},
		"maxItems": 3,
	},
}

func TestValidateJSON(t *testing.T) {
	require.NoError(t, ValidateJSON(nil, []byte("not json")))
	require.NoError(t, ValidateJSON(listSchema, []byte(`["a","b"]`)))

	var inv *ErrInvalidResponse
	require.ErrorAs(t, ValidateJSON(listSchema, []byte(`["a",1]`)), &inv)
	require.ErrorAs(t, ValidateJSON(listSchema, []byte(`["a","b","c","d"]`)), &inv)
	require.ErrorAs(t, ValidateJSON(listSchema, []byte(`{`)), &inv)
	assert.Equal(t, []byte(`{`), inv.Content)
}

func TestMockProvider_Fallback(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: "first"})
	mock.Fallback = func(req Request) (string, error) { return "echo:" + req.Messages[0].Content, nil }

	r1, err := mock.Generate(context.Background(), UserPrompt("", "x"))
	require.NoError(t, err)
	r2, err := mock.Generate(context.Background(), UserPrompt("", "y"))
	require.NoError(t, err)
	assert.Equal(t, "first", r1.Text())
	assert.Equal(t, "echo:y", r2.Text())
	assert.Equal(t, 2, mock.CallCount())
}

func TestWithLogging_PassesThrough(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: "ok"}, MockResponse{Err: errors.New("nope")})
	p := WithLogging(mock, "test")
	assert.Equal(t, "mock", p.ModelID())

	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	_, err = p.Generate(context.Background(), Request{})
	require.EqualError(t, err, "nope")
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	_, err := NewProvider(ctx, config.LLMConfig{Provider: "none"}, config.CredentialsConfig{})
	require.ErrorIs(t, err, ErrDisabled)

	_, err = NewProvider(ctx, config.LLMConfig{Provider: "openai"}, config.CredentialsConfig{})
	require.Error(t, err)

	_, err = NewProvider(ctx, config.LLMConfig{Provider: "llama"}, config.CredentialsConfig{})
	require.ErrorContains(t, err, "unknown llm provider")

	p, err := NewProvider(ctx, config.LLMConfig{Provider: "openai", Model: "gpt-4o"}, config.CredentialsConfig{OpenAIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.ModelID())

	p, err = NewProvider(ctx, config.LLMConfig{Provider: "anthropic"}, config.CredentialsConfig{AnthropicKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicModel, p.ModelID())

	p, err = NewProvider(ctx, config.LLMConfig{Provider: "mock"}, config.CredentialsConfig{})
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())
}
