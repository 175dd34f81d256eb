// Package convert turns completed commentary blocks into typed tool calls
// and renders them either as XML tag-trees (Cline style) or as OpenAI
// tool_calls objects.
package convert

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"harmony-bridge/channel"
	"harmony-bridge/metrics"
)

// RawArgKey holds the verbatim payload when a call's body could not be
// parsed as JSON. Malformed payloads degrade to this single argument
// instead of failing the exchange.
const RawArgKey = "raw"

// Arg is one named call argument. Value is a string, bool, json.Number,
// nil, []interface{} or a nested []Arg, mirroring the parsed payload.
type Arg struct {
	Key   string
	Value interface{}
}

// Call is a structured tool invocation extracted from a commentary block.
// Name is always non-empty and argument keys are unique.
type Call struct {
	Name     string
	Args     []Arg
	Fallback bool // payload was not valid JSON; Args holds it verbatim
}

// FromBlock converts a completed block into a Call. The recipient names the
// tool, stripped of its namespace (functions.write_file -> write_file). The
// payload is parsed as JSON when the content type says so or when it is
// object-shaped; anything unparseable becomes a single raw argument.
//
// An empty payload yields a Call with no arguments, not an error.
func FromBlock(b *channel.Block) Call {
	call := Call{Name: LeafName(b.Recipient)}
	payload := strings.TrimSpace(b.Payload())
	if payload == "" {
		return call
	}
	if b.ContentType == "json" || strings.HasPrefix(payload, "{") {
		if args, err := parseArgs(payload); err == nil {
			call.Args = args
			return call
		}
		metrics.ParseFallbacksTotal.Inc()
	}
	call.Args = []Arg{{Key: RawArgKey, Value: payload}}
	call.Fallback = true
	return call
}

// LeafName strips namespace and path separators from a recipient, keeping
// the leaf identifier the downstream calling convention expects.
func LeafName(recipient string) string {
	name := strings.TrimSpace(recipient)
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// parseArgs decodes a JSON object into insertion-ordered arguments.
// encoding/json maps lose key order, so the object is walked through the
// decoder's token stream instead.
func parseArgs(payload string) ([]Arg, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, &json.UnmarshalTypeError{Value: "non-object"}
	}
	args, err := parseObject(dec)
	if err != nil {
		return nil, err
	}
	// Anything after the closing brace makes the whole payload malformed;
	// truncating it would lose argument text.
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingPayload
	}
	return args, nil
}

var errTrailingPayload = errors.New("trailing data after arguments object")

func parseObject(dec *json.Decoder) ([]Arg, error) {
	var args []Arg
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, &json.UnmarshalTypeError{Value: "non-string key"}
		}
		value, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range args {
			if args[i].Key == key {
				// Duplicate keys: last value wins, first position kept.
				args[i].Value = value
				replaced = true
				break
			}
		}
		if !replaced {
			args = append(args, Arg{Key: key, Value: value})
		}
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return args, nil
}

func parseValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); ok {
		switch d {
		case '{':
			nested, err := parseObject(dec)
			if err != nil {
				return nil, err
			}
			return nested, nil
		case '[':
			var items []interface{}
			for dec.More() {
				item, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, err
			}
			return items, nil
		}
	}
	return tok, nil
}
