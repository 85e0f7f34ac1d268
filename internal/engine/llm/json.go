package llm

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
)

// GenerateSchema reflects a closed JSON schema for value's type, for use in prompts.
func GenerateSchema(value any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return reflector.Reflect(reflect.New(t).Interface())
}

// SchemaJSON renders GenerateSchema as indented JSON.
func SchemaJSON(value any) (string, error) {
	b, err := json.MarshalIndent(GenerateSchema(value), "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "llm: marshal schema")
	}
	return string(b), nil
}

// UnmarshalFlexible decodes model output into out. It accepts plain JSON,
// JSON wrapped in a markdown fence, double-encoded JSON strings and, as a
// last resort, JSON repaired by jsonrepair.
func UnmarshalFlexible(input string, out any) error {
	input = stripFence(strings.TrimSpace(input))
	if input == "" {
		return eris.New("llm: empty response")
	}

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return eris.Wrapf(err, "llm: repair json (input: %.200s)", input)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return eris.Wrapf(err, "llm: unmarshal repaired json (repaired: %.200s)", repaired)
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
