package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// reflection is the structured reply requested from models that support
// JSON schema output.
type reflection struct {
	FramingStatement   string `json:"framing_statement" jsonschema:"required,description=One declarative sentence reframing the situation"`
	ReflectiveQuestion string `json:"reflective_question" jsonschema:"required,description=One open reflective question ending in a question mark"`
}

// text joins the two fields into the candidate the validator expects. Each
// field is terminated on its own so an unpunctuated field keeps its role:
// the framing ends in a statement terminator, the question in '?'.
func (r reflection) text() string {
	framing := strings.TrimSpace(r.FramingStatement)
	if framing != "" && !strings.ContainsAny(framing[len(framing)-1:], ".!?") {
		framing += "."
	}
	question := strings.TrimRight(strings.TrimSpace(r.ReflectiveQuestion), ".! ")
	if question != "" && !strings.HasSuffix(question, "?") {
		question += "?"
	}
	return strings.TrimSpace(framing + " " + question)
}

func decodeReflection(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	var r reflection
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return r.text(), nil
}

// generateSchema reflects T into a strict JSON schema map.
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	ensureStrict(m)
	return m
}

// ensureStrict marks every object closed and every property required, which
// strict structured output demands.
func ensureStrict(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				ensureStrict(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureStrict(items)
	}
}
