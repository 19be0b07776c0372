package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidOutput = errors.New("invalid structured output")

// InvokeJSON runs a schema-constrained call and decodes the validated
// object into out.
func InvokeJSON(ctx context.Context, llm LLM, req *Request, out interface{}) error {
	if req.Schema == nil {
		return fmt.Errorf("response schema is required")
	}
	raw, err := llm.Invoke(ctx, req)
	if err != nil {
		return err
	}
	doc, err := ExtractJSONObject(raw)
	if err != nil {
		return err
	}
	if err := ValidateJSON(req.Schema, []byte(doc)); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// ExtractJSONObject strips code fences and surrounding prose from a model
// reply, returning the outermost JSON object.
func ExtractJSONObject(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no json object in response", ErrInvalidOutput)
	}
	return clean[start : end+1], nil
}

func ValidateJSON(schema map[string]interface{}, doc []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidOutput, strings.Join(msgs, "; "))
}
