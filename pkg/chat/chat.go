package chat

// Chat roles, following the OpenAI-style wire convention shared by the
// providers we support.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single message in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema wraps a schema document for structured-output requests.
type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// ResponseFormat asks the provider for schema-constrained output.
// Providers without native support receive the schema as an extra system
// instruction instead; either way the response is re-validated locally.
type ResponseFormat struct {
	Type       string     `json:"type"` // "json_schema"
	JSONSchema JSONSchema `json:"json_schema"`
}

// NewSchemaFormat builds a strict json_schema response format.
func NewSchemaFormat(name string, schema map[string]any) *ResponseFormat {
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: JSONSchema{
			Name:   name,
			Strict: true,
			Schema: schema,
		},
	}
}
