package sandbox

import (
	"fmt"
	"log/slog"

	"github.com/Shopify/go-lua"

	"github.com/courtvoice/courtvoice/pkg/action"
)

// ExtractDefinition evaluates an action script in a bare restricted state
// and validates its declared shape. The script gets no access to game
// state; only its exported table is inspected. Validation short-circuits
// on the first failure with a human-readable message.
func ExtractDefinition(source string, log *slog.Logger) (*action.Definition, error) {
	l := newRestrictedState(log)
	if err := loadModule(l, source); err != nil {
		return nil, err
	}

	def := &action.Definition{Source: source}

	l.Field(-1, "signature")
	sig, ok := l.ToString(-1)
	l.Pop(1)
	if !ok || sig == "" {
		return nil, fmt.Errorf("signature must be a non-empty string")
	}
	def.Signature = sig

	l.Field(-1, "title")
	if title, ok := l.ToString(-1); ok {
		def.Title = title
	}
	l.Pop(1)

	l.Field(-1, "description")
	switch l.TypeOf(-1) {
	case lua.TypeString:
		def.Description, _ = l.ToString(-1)
	case lua.TypeFunction:
		def.DynamicDesc = true
	default:
		l.Pop(1)
		return nil, fmt.Errorf("description must be a string or function")
	}
	l.Pop(1)

	l.Field(-1, "args")
	switch l.TypeOf(-1) {
	case lua.TypeTable:
		raw := tableToGo(l, -1)
		args, err := parseArgSpecs(raw)
		if err != nil {
			l.Pop(1)
			return nil, err
		}
		def.Args = args
	case lua.TypeFunction:
		def.DynamicArgs = true
	case lua.TypeNil:
		def.Args = nil
	default:
		l.Pop(1)
		return nil, fmt.Errorf("args must be an array or function")
	}
	l.Pop(1)

	l.Field(-1, "is_destructive")
	def.IsDestructive = l.ToBoolean(-1)
	l.Pop(1)

	l.Field(-1, "check")
	if l.TypeOf(-1) != lua.TypeFunction {
		l.Pop(1)
		return nil, fmt.Errorf("check must be a function")
	}
	l.Pop(1)

	l.Field(-1, "run")
	if l.TypeOf(-1) != lua.TypeFunction {
		l.Pop(1)
		return nil, fmt.Errorf("run must be a function")
	}
	l.Pop(1)

	return def, nil
}

// parseArgSpecs converts the Lua args array into argument specs and
// validates each one.
func parseArgSpecs(raw any) ([]action.ArgumentSpec, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		// An empty Lua table converts to a map; treat it as no args.
		if m, isMap := raw.(map[string]any); isMap && len(m) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("args must be an array of argument tables")
	}

	specs := make([]action.ArgumentSpec, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("argument %d must be a table", i+1)
		}
		spec := action.ArgumentSpec{
			Name:        stringField(entry, "name"),
			Description: stringField(entry, "description"),
			Type:        action.ArgType(stringField(entry, "type")),
			Required:    boolField(entry, "required"),
			Pattern:     stringField(entry, "pattern"),
		}
		spec.Min = numberField(entry, "min")
		spec.Max = numberField(entry, "max")
		spec.Step = numberField(entry, "step")
		spec.MinLength = intField(entry, "min_length")
		spec.MaxLength = intField(entry, "max_length")
		if opts, ok := entry["options"].([]any); ok {
			for _, o := range opts {
				if s, ok := o.(string); ok {
					spec.Options = append(spec.Options, s)
				}
			}
		}
		specs = append(specs, spec)
	}
	if err := action.ValidateArgs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func numberField(m map[string]any, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func intField(m map[string]any, key string) *int {
	switch v := m[key].(type) {
	case int:
		return &v
	case float64:
		i := int(v)
		return &i
	}
	return nil
}
