package action

import (
	"fmt"
	"regexp"
)

// ArgType enumerates the supported argument kinds for an action.
type ArgType string

const (
	ArgNumber  ArgType = "number"
	ArgString  ArgType = "string"
	ArgEnum    ArgType = "enum"
	ArgBoolean ArgType = "boolean"
)

// ArgumentSpec describes one declared argument of an action. Constraint
// fields apply per type: Min/Max/Step for numbers, MinLength/MaxLength/
// Pattern for strings, Options for enums.
type ArgumentSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        ArgType  `json:"type"`
	Required    bool     `json:"required"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Step        *float64 `json:"step,omitempty"`
	MinLength   *int     `json:"min_length,omitempty"`
	MaxLength   *int     `json:"max_length,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Validate checks structural correctness of the spec.
func (a ArgumentSpec) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("argument name cannot be empty")
	}
	if a.Description == "" {
		return fmt.Errorf("argument %q: description cannot be empty", a.Name)
	}
	switch a.Type {
	case ArgNumber:
		if a.Step != nil && *a.Step <= 0 {
			return fmt.Errorf("argument %q: step must be positive", a.Name)
		}
		if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
			return fmt.Errorf("argument %q: min exceeds max", a.Name)
		}
	case ArgString:
		if a.Pattern != "" {
			if _, err := regexp.Compile(a.Pattern); err != nil {
				return fmt.Errorf("argument %q: invalid pattern: %w", a.Name, err)
			}
		}
		if a.MinLength != nil && a.MaxLength != nil && *a.MinLength > *a.MaxLength {
			return fmt.Errorf("argument %q: min_length exceeds max_length", a.Name)
		}
	case ArgEnum:
		if len(a.Options) == 0 {
			return fmt.Errorf("argument %q: enum requires at least one option", a.Name)
		}
	case ArgBoolean:
	default:
		return fmt.Errorf("argument %q: unsupported type %q", a.Name, a.Type)
	}
	return nil
}

// ValidateArgs checks an argument list as a whole.
func ValidateArgs(args []ArgumentSpec) error {
	seen := make(map[string]bool, len(args))
	for _, a := range args {
		if err := a.Validate(); err != nil {
			return err
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate argument name %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Provenance tags where an action script was discovered.
const (
	ProvenanceStandard = "standard"
	ProvenanceCustom   = "custom"
)

// Definition is a loaded, validated action script. The script source is
// retained verbatim: check/run/dynamic fields are Lua functions that are
// re-evaluated in a fresh sandbox per use, never against loader state.
//
// Definitions are immutable after load; per-signature user state (disabled
// flag, destructiveness override) lives in Settings, not here.
type Definition struct {
	Signature     string         `json:"signature"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"` // static text, empty when dynamic
	DynamicDesc   bool           `json:"dynamic_description,omitempty"`
	Args          []ArgumentSpec `json:"args,omitempty"` // static specs, nil when dynamic
	DynamicArgs   bool           `json:"dynamic_args,omitempty"`
	IsDestructive bool           `json:"is_destructive,omitempty"`
	Provenance    string         `json:"provenance"`
	Path          string         `json:"-"`
	Source        string         `json:"-"`
}

// ValidationStatus records the load-time outcome for one action script,
// keyed by signature (or filename when the signature could not be read).
type ValidationStatus struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Invocation is an LLM-proposed call to one action.
type Invocation struct {
	ActionID          string         `json:"actionId"`
	TargetCharacterID *int64         `json:"targetCharacterId,omitempty"`
	Args              map[string]any `json:"args"`
}

// Sentiment values attached to action feedback.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Feedback is the normalized result of an action's run function.
type Feedback struct {
	Message   string `json:"message"`
	Sentiment string `json:"sentiment"`
}

// ExecutionResult is produced once per invocation attempt, real or dry-run.
type ExecutionResult struct {
	ActionID string    `json:"actionId"`
	Success  bool      `json:"success"`
	Feedback *Feedback `json:"feedback,omitempty"`
	Error    string    `json:"error,omitempty"`
}
