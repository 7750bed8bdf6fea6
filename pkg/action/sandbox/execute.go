package sandbox

import (
	"fmt"
	"log/slog"

	"github.com/Shopify/go-lua"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/court"
)

// Context carries everything an action's Lua functions may touch during
// one evaluation: live references to the game aggregate and the involved
// characters, the resolved argument values, and the effect emitter.
type Context struct {
	GameData *court.GameData
	Source   *court.Character
	Target   *court.Character
	Args     map[string]any
	Language string
	DryRun   bool

	// Emit receives engine-effect bodies produced by the script. It is
	// replaced with a no-op while DryRun is set, so previews can never
	// reach the run file.
	Emit func(effectBody string)

	Log *slog.Logger
}

// newExecutionState builds the restricted state plus the domain bindings
// and context globals.
func newExecutionState(ctx *Context) *lua.State {
	l := newRestrictedState(ctx.Log)
	registerDomainTypes(l)

	emit := ctx.Emit
	l.PushGoFunction(func(l *lua.State) int {
		body := lua.CheckString(l, 1)
		if !ctx.DryRun && emit != nil {
			emit(body)
		}
		return 0
	})
	l.SetGlobal("emit")

	return l
}

// pushContextTable pushes the ctx table handed to check/run/description/
// args functions.
func pushContextTable(l *lua.State, ctx *Context) {
	l.NewTable()
	pushGame(l, ctx.GameData)
	l.SetField(-2, "game")
	pushCharacter(l, ctx.Source)
	l.SetField(-2, "source")
	pushCharacter(l, ctx.Target)
	l.SetField(-2, "target")
	l.NewTable()
	for k, v := range ctx.Args {
		pushGoValue(l, v)
		l.SetField(-2, k)
	}
	l.SetField(-2, "args")
	l.PushString(ctx.Language)
	l.SetField(-2, "locale")
	l.PushBoolean(ctx.DryRun)
	l.SetField(-2, "dry_run")
}

// callModuleFunction loads the script, fetches the named exported function
// and calls it with the context table, leaving nresults values on the
// stack. The returned state must only be used when err is nil.
func callModuleFunction(def *action.Definition, ctx *Context, name string, nresults int) (*lua.State, error) {
	l := newExecutionState(ctx)
	if err := loadModule(l, def.Source); err != nil {
		return nil, err
	}
	l.Field(-1, name)
	if l.TypeOf(-1) != lua.TypeFunction {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	pushContextTable(l, ctx)
	if err := l.ProtectedCall(1, nresults, 0); err != nil {
		return nil, fmt.Errorf("%s failed: %s", name, luaErrMessage(l, err))
	}
	return l, nil
}

// Execute runs the action's run function. Script failures are converted
// into an unsuccessful ExecutionResult; they never propagate as errors.
func Execute(def *action.Definition, ctx *Context) *action.ExecutionResult {
	l, err := callModuleFunction(def, ctx, "run", 1)
	if err != nil {
		return &action.ExecutionResult{
			ActionID: def.Signature,
			Success:  false,
			Error:    err.Error(),
		}
	}
	feedback := normalizeFeedback(luaToGo(l, -1), ctx.Language)
	return &action.ExecutionResult{
		ActionID: def.Signature,
		Success:  true,
		Feedback: feedback,
	}
}

// Check runs the action's capability predicate. It returns whether the
// action is currently available and, when the script provides one, the
// list of valid target character ids. Script errors propagate so the
// caller can record them as per-turn validation failures.
func Check(def *action.Definition, ctx *Context) (bool, []int64, error) {
	l, err := callModuleFunction(def, ctx, "check", 2)
	if err != nil {
		return false, nil, err
	}
	ok := l.ToBoolean(-2)
	var targets []int64
	if list, isList := luaToGo(l, -1).([]any); isList {
		for _, item := range list {
			switch id := item.(type) {
			case int:
				targets = append(targets, int64(id))
			case float64:
				targets = append(targets, int64(id))
			}
		}
	}
	return ok, targets, nil
}

// ResolveDescription returns the action description for this context,
// calling the script's description function when it is dynamic.
func ResolveDescription(def *action.Definition, ctx *Context) (string, error) {
	if !def.DynamicDesc {
		return def.Description, nil
	}
	l, err := callModuleFunction(def, ctx, "description", 1)
	if err != nil {
		return "", err
	}
	desc, ok := l.ToString(-1)
	if !ok {
		return "", fmt.Errorf("description function must return a string")
	}
	return desc, nil
}

// ResolveArgs returns the action's argument specs for this context,
// calling the script's args function when it is dynamic.
func ResolveArgs(def *action.Definition, ctx *Context) ([]action.ArgumentSpec, error) {
	if !def.DynamicArgs {
		return def.Args, nil
	}
	l, err := callModuleFunction(def, ctx, "args", 1)
	if err != nil {
		return nil, err
	}
	if l.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("args function must return an array")
	}
	return parseArgSpecs(tableToGo(l, -1))
}
