// Package schema generates the JSON Schema sent to LLM providers for
// structured action selection, and the runtime validator that gates every
// response. Both come from the same internal description: the validator
// is compiled from the generated schema bytes, so the two cannot drift.
// The schema is advisory (providers may ignore it); the validator is
// authoritative.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/courtvoice/courtvoice/pkg/action"
)

// Available is one action offered to the LLM for the current turn, with
// its dynamic fields already resolved against the source character.
type Available struct {
	Signature      string
	Title          string
	Description    string
	Args           []action.ArgumentSpec
	RequiresTarget bool
	TargetIDs      []int64 // allow-list when non-empty
	Destructive    bool
}

// Shape selects how much constraint detail goes into the advisory schema.
// Weaker providers choke on deeply nested oneOf constructs; the minimal
// shape keeps only the action id enum. The runtime validator always
// enforces the full contract regardless of shape.
type Shape string

const (
	ShapeAuto    Shape = "auto"
	ShapeFull    Shape = "full"
	ShapeMinimal Shape = "minimal"
)

// Model families known to mishandle rich structured-output schemas.
var weakSchemaModels = []string{"llama", "mistral", "gemma", "phi", "qwen"}

// ShapeForModel applies the auto heuristic for a model name.
func ShapeForModel(model string) Shape {
	lower := strings.ToLower(model)
	for _, family := range weakSchemaModels {
		if strings.Contains(lower, family) {
			return ShapeMinimal
		}
	}
	return ShapeFull
}

// Resolve turns a configured shape into a concrete one for a model.
func Resolve(configured Shape, model string) Shape {
	if configured == ShapeFull || configured == ShapeMinimal {
		return configured
	}
	return ShapeForModel(model)
}

// Built pairs the advisory schema with the compiled validator for one
// turn's action set.
type Built struct {
	Schema    map[string]any
	actions   map[string]Available
	validator *jsonschema.Schema
}

// Build generates both artifacts for the given action set.
func Build(available []Available, shape Shape) (*Built, error) {
	if len(available) == 0 {
		return nil, fmt.Errorf("no actions available")
	}

	byID := make(map[string]Available, len(available))
	for _, a := range available {
		byID[a.Signature] = a
	}

	full := fullSchema(available)
	data, err := json.Marshal(full)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("actions.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	validator, err := compiler.Compile("actions.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	advisory := full
	if shape == ShapeMinimal {
		advisory = minimalSchema(available)
	}

	return &Built{
		Schema:    advisory,
		actions:   byID,
		validator: validator,
	}, nil
}

// Validate runs the authoritative gate over a healed response value and
// decodes it into invocations. Step reachability is checked in Go since
// JSON Schema's multipleOf cannot express an offset from a minimum.
func (b *Built) Validate(v any) ([]action.Invocation, error) {
	if err := b.validator.Validate(v); err != nil {
		return nil, fmt.Errorf("response failed schema validation: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal response: %w", err)
	}
	var decoded struct {
		Actions []action.Invocation `json:"actions"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode invocations: %w", err)
	}

	for _, inv := range decoded.Actions {
		a, ok := b.actions[inv.ActionID]
		if !ok {
			return nil, fmt.Errorf("unknown action %q", inv.ActionID)
		}
		if err := checkSteps(a, inv.Args); err != nil {
			return nil, err
		}
	}
	return decoded.Actions, nil
}

func checkSteps(a Available, args map[string]any) error {
	for _, spec := range a.Args {
		if spec.Type != action.ArgNumber || spec.Step == nil {
			continue
		}
		raw, present := args[spec.Name]
		if !present {
			continue
		}
		value, ok := raw.(float64)
		if !ok {
			continue // type already enforced by the schema
		}
		base := 0.0
		if spec.Min != nil {
			base = *spec.Min
		}
		steps := (value - base) / *spec.Step
		if math.Abs(steps-math.Round(steps)) > 1e-9 {
			return fmt.Errorf("action %q argument %q: %v is not reachable by stepping %v from %v",
				a.Signature, spec.Name, value, *spec.Step, base)
		}
	}
	return nil
}

// fullSchema builds the strict discriminated-union document: the actions
// array where each element matches exactly one available action.
func fullSchema(available []Available) map[string]any {
	variants := make([]any, 0, len(available))
	for _, a := range available {
		variants = append(variants, variantSchema(a))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"actions"},
		"properties": map[string]any{
			"actions": map[string]any{
				"type":  "array",
				"items": map[string]any{"oneOf": variants},
			},
		},
	}
}

func variantSchema(a Available) map[string]any {
	props := map[string]any{
		"actionId": map[string]any{"const": a.Signature},
		"args":     argsSchema(a.Args),
	}
	required := []string{"actionId", "args"}

	if a.RequiresTarget {
		target := map[string]any{"type": "integer"}
		if len(a.TargetIDs) > 0 {
			target["enum"] = a.TargetIDs
		}
		props["targetCharacterId"] = target
		required = append(required, "targetCharacterId")
	} else {
		// Absent or null only.
		props["targetCharacterId"] = map[string]any{"type": "null"}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
		"description":          a.Description,
	}
}

func argsSchema(args []action.ArgumentSpec) map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, spec := range args {
		props[spec.Name] = argSchema(spec)
		if spec.Required {
			required = append(required, spec.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func argSchema(spec action.ArgumentSpec) map[string]any {
	s := map[string]any{"description": spec.Description}
	switch spec.Type {
	case action.ArgNumber:
		s["type"] = "number"
		if spec.Min != nil {
			s["minimum"] = *spec.Min
		}
		if spec.Max != nil {
			s["maximum"] = *spec.Max
		}
		// multipleOf only expresses steps anchored at zero.
		if spec.Step != nil && (spec.Min == nil || *spec.Min == 0) {
			s["multipleOf"] = *spec.Step
		}
	case action.ArgString:
		s["type"] = "string"
		if spec.MinLength != nil {
			s["minLength"] = *spec.MinLength
		}
		if spec.MaxLength != nil {
			s["maxLength"] = *spec.MaxLength
		}
		if spec.Pattern != "" {
			s["pattern"] = spec.Pattern
		}
	case action.ArgEnum:
		s["type"] = "string"
		s["enum"] = spec.Options
	case action.ArgBoolean:
		s["type"] = "boolean"
	}
	return s
}

// minimalSchema keeps only the action id enum and loose target/args
// shapes for providers with weak structured-output support.
func minimalSchema(available []Available) map[string]any {
	sigs := make([]string, 0, len(available))
	for _, a := range available {
		sigs = append(sigs, a.Signature)
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"actions"},
		"properties": map[string]any{
			"actions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"actionId"},
					"properties": map[string]any{
						"actionId":          map[string]any{"type": "string", "enum": sigs},
						"targetCharacterId": map[string]any{"type": []string{"integer", "null"}},
						"args":              map[string]any{"type": "object"},
					},
				},
			},
		},
	}
}
