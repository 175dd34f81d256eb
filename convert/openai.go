package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"harmony-bridge/types"
)

// OpenAI renders the call as an OpenAI tool_calls entry for embedding in a
// chat completion response. index is the call's position within the
// assistant message. Arguments are serialized back to a JSON object string
// preserving insertion order.
func (c Call) OpenAI(index int) types.OpenAIToolCall {
	return types.OpenAIToolCall{
		ID:    NewCallID(),
		Type:  "function",
		Index: index,
		Function: types.OpenAIToolCallFunction{
			Name:      c.Name,
			Arguments: c.ArgumentsJSON(),
		},
	}
}

// NewCallID generates a unique tool call identifier.
func NewCallID() string {
	return "call_" + strings.Split(uuid.NewString(), "-")[0]
}

// ArgumentsJSON serializes the arguments as a JSON object string,
// preserving insertion order. Encoding errors cannot occur for values
// produced by FromBlock; a defensive fallback keeps the output valid JSON.
func (c Call) ArgumentsJSON() string {
	data, err := marshalArgs(c.Args)
	if err != nil {
		raw, _ := json.Marshal(map[string]string{RawArgKey: fmt.Sprintf("%v", c.Args)})
		return string(raw)
	}
	return string(data)
}

func marshalArgs(args []Arg) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range args {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(arg.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalValue(arg.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []Arg:
		return marshalArgs(v)
	case []interface{}:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := marshalValue(item)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v)
	}
}
