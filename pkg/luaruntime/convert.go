package luaruntime

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/Shopify/go-lua"
)

// maxDepth bounds table conversion so self-referencing tables terminate.
const maxDepth = 64

// toGo converts the Lua value at index into a JSON-compatible Go value.
// Tables with keys 1..n become []any, other tables map[string]any.
// Functions, userdata and threads become nil.
func toGo(state *lua.State, index int) any {
	return toGoDepth(state, state.AbsIndex(index), 0)
}

func toGoDepth(state *lua.State, index, depth int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		if depth >= maxDepth {
			return nil
		}
		return tableToGo(state, index, depth+1)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index, depth int) any {
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, toGoDepth(state, state.AbsIndex(-1), depth))
			state.Pop(1)
		}
		return result
	}

	output := map[string]any{}
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = toGoDepth(state, state.AbsIndex(-1), depth)
		}
		state.Pop(1)
	}
	return output
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 && math.Abs(value) < 1<<53 {
		return int(value)
	}
	return value
}

// push pushes a decoded JSON value onto the Lua stack.
func push(state *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		state.PushNil()
	case bool:
		state.PushBoolean(v)
	case string:
		state.PushString(v)
	case float64:
		state.PushNumber(v)
	case int:
		state.PushNumber(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			state.PushString(v.String())
			return
		}
		state.PushNumber(f)
	case []any:
		state.CreateTable(len(v), 0)
		for i, item := range v {
			push(state, item)
			state.RawSetInt(-2, i+1)
		}
	case map[string]any:
		state.CreateTable(0, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			push(state, v[k])
			state.SetField(-2, k)
		}
	default:
		state.PushNil()
	}
}

func decodeJSON(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}
