// Package sandbox evaluates user-authored action scripts inside isolated
// Lua states. Two environments exist: a bare one used at load time to
// extract declared metadata, and an execution one that additionally exposes
// the live game-data aggregate, the invocation context and an effect
// emitter. Neither grants filesystem, OS or module-loading access.
package sandbox

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"

	"github.com/Shopify/go-lua"
)

// Globals removed from the base library. Action scripts must not be able
// to load further code or reach outside their state.
var deniedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"collectgarbage",
}

// newRestrictedState builds a Lua state with base, string, table and math
// libraries only, with code-loading primitives removed.
func newRestrictedState(log *slog.Logger) *lua.State {
	l := lua.NewState()

	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "string", lua.StringOpen, true)
	l.Pop(1)
	lua.Require(l, "table", lua.TableOpen, true)
	l.Pop(1)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(1)

	for _, name := range deniedGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}

	// print is routed to the structured logger so script output stays
	// observable without giving scripts a real output channel.
	l.PushGoFunction(func(l *lua.State) int {
		parts := make([]string, 0, l.Top())
		for i := 1; i <= l.Top(); i++ {
			parts = append(parts, fmt.Sprint(luaToGo(l, i)))
		}
		if log != nil {
			log.Debug("action script print", "output", strings.Join(parts, "\t"))
		}
		return 0
	})
	l.SetGlobal("print")

	// roll(sides) or roll(count, sides) for action flavor randomness.
	l.PushGoFunction(func(l *lua.State) int {
		first := lua.CheckInteger(l, 1)
		count, sides := 1, first
		if l.Top() >= 2 {
			count, sides = first, lua.CheckInteger(l, 2)
		}
		if sides < 1 || count < 1 {
			lua.Errorf(l, "roll requires positive dice")
			return 0
		}
		total := 0
		for i := 0; i < count; i++ {
			total += rand.Intn(sides) + 1
		}
		l.PushInteger(total)
		return 1
	})
	l.SetGlobal("roll")

	return l
}

// loadModule evaluates the script source and leaves its exported table on
// the stack. Scripts are expected to end with `return { ... }`.
func loadModule(l *lua.State, source string) error {
	if err := lua.LoadString(l, source); err != nil {
		return fmt.Errorf("script does not parse: %s", luaErrMessage(l, err))
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return fmt.Errorf("script failed to evaluate: %s", luaErrMessage(l, err))
	}
	if l.TypeOf(-1) != lua.TypeTable {
		l.Pop(1)
		return fmt.Errorf("script must return a table")
	}
	return nil
}

// luaErrMessage extracts the error message left on the stack by a failed
// load or protected call, falling back to the Go error.
func luaErrMessage(l *lua.State, err error) string {
	if l.Top() > 0 && l.TypeOf(-1) == lua.TypeString {
		if msg, ok := l.ToString(-1); ok {
			l.Pop(1)
			return msg
		}
	}
	return err.Error()
}

func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		v, _ := l.ToString(index)
		return v
	case lua.TypeNumber:
		v, _ := l.ToNumber(index)
		return normalizeNumber(v)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	case lua.TypeUserData:
		return l.ToUserData(index)
	default:
		return nil
	}
}

func tableToMap(l *lua.State, index int) map[string]any {
	out := map[string]any{}
	if l.TypeOf(index) != lua.TypeTable {
		return out
	}
	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			out[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return out
}

// tableToGo converts a table to a []any when it is a dense 1-based array,
// otherwise to a map[string]any.
func tableToGo(l *lua.State, index int) any {
	if l.TypeOf(index) != lua.TypeTable {
		return nil
	}
	index = l.AbsIndex(index)
	isArray := true
	maxIndex, count := 0, 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}
	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, luaToGo(l, -1))
			l.Pop(1)
		}
		return result
	}
	return tableToMap(l, index)
}

func normalizeNumber(v float64) any {
	if math.Mod(v, 1) == 0 {
		return int(v)
	}
	return v
}

// pushGoValue pushes an arbitrary Go value produced by JSON decoding or
// argument coercion onto the Lua stack.
func pushGoValue(l *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(val)
	case string:
		l.PushString(val)
	case int:
		l.PushInteger(val)
	case int64:
		l.PushInteger(int(val))
	case float64:
		if math.Mod(val, 1) == 0 {
			l.PushInteger(int(val))
		} else {
			l.PushNumber(val)
		}
	case map[string]any:
		l.NewTable()
		for k, item := range val {
			pushGoValue(l, item)
			l.SetField(-2, k)
		}
	case []any:
		l.NewTable()
		for i, item := range val {
			l.PushInteger(i + 1)
			pushGoValue(l, item)
			l.SetTable(-3)
		}
	default:
		l.PushString(fmt.Sprint(val))
	}
}
