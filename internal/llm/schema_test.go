package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var itemsSchema = &Schema{Name: "items_test", Definition: map[string]any{
	"type": "object",
	"properties": map[string]any{
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind":  map[string]any{"type": "string", "enum": []any{"a", "b"}},
					"score": map[string]any{"type": "number"},
					"n":     map[string]any{"type": "integer"},
				},
				"required": []string{"kind"},
			},
		},
	},
	"required": []any{"items"},
}}

func TestGeminiSchemaConversion(t *testing.T) {
	s := geminiSchema(itemsSchema.Definition)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"items"}, s.Required)

	items := s.Properties["items"]
	require.NotNil(t, items)
	assert.Equal(t, genai.TypeArray, items.Type)
	require.NotNil(t, items.Items)
	assert.Equal(t, genai.TypeObject, items.Items.Type)
	assert.Equal(t, []string{"kind"}, items.Items.Required)
	assert.Equal(t, []string{"a", "b"}, items.Items.Properties["kind"].Enum)
	assert.Equal(t, genai.TypeNumber, items.Items.Properties["score"].Type)
	assert.Equal(t, genai.TypeInteger, items.Items.Properties["n"].Type)
}

func openAIServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
}

func TestOpenAISendsSchemaAndValidatesReply(t *testing.T) {
	var seen map[string]any
	ts := openAIServer(t, `{"items":[{"kind":"a","score":0.5}]}`, &seen)
	defer ts.Close()
	p, err := NewOpenAIProvider("key", "", ts.URL)
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Schema:   itemsSchema,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"kind":"a","score":0.5}]}`, resp.Text())

	format, _ := seen["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	js, _ := format["json_schema"].(map[string]any)
	assert.Equal(t, "items_test", js["name"])
}

func TestOpenAIRejectsReplyOutsideSchema(t *testing.T) {
	var seen map[string]any
	ts := openAIServer(t, `{"items":[{"kind":"z"}]}`, &seen)
	defer ts.Close()
	p, err := NewOpenAIProvider("key", "", ts.URL)
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Schema:   itemsSchema,
	})
	var inv *ErrInvalidResponse
	require.ErrorAs(t, err, &inv)
}

func TestOpenAIJSONModeWithoutSchema(t *testing.T) {
	var seen map[string]any
	ts := openAIServer(t, `{"ok":true}`, &seen)
	defer ts.Close()
	p, err := NewOpenAIProvider("key", "", ts.URL)
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}, JSON: true})
	require.NoError(t, err)
	format, _ := seen["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
}
