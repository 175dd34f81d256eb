package convert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// XML renders the call as a nested tag-tree in the shape Cline-style
// clients expect: the opening tag is the call name, each argument becomes
// a nested element in insertion order, scalars are escaped literal text,
// nested objects recurse and array elements are wrapped in <item>.
//
//	<write_file><path>a.py</path><content>x</content></write_file>
func (c Call) XML() string {
	var sb strings.Builder
	sb.WriteString("<" + c.Name + ">")
	for _, arg := range c.Args {
		writeElement(&sb, arg.Key, arg.Value)
	}
	sb.WriteString("</" + c.Name + ">")
	return sb.String()
}

func writeElement(sb *strings.Builder, name string, value interface{}) {
	sb.WriteString("<" + name + ">")
	writeValue(sb, value)
	sb.WriteString("</" + name + ">")
}

func writeValue(sb *strings.Builder, value interface{}) {
	switch v := value.(type) {
	case nil:
		// null renders as an empty element
	case string:
		sb.WriteString(EscapeXML(v))
	case json.Number:
		sb.WriteString(v.String())
	case bool:
		fmt.Fprintf(sb, "%t", v)
	case []Arg:
		for _, arg := range v {
			writeElement(sb, arg.Key, arg.Value)
		}
	case []interface{}:
		for _, item := range v {
			writeElement(sb, "item", item)
		}
	default:
		sb.WriteString(EscapeXML(fmt.Sprintf("%v", v)))
	}
}

// EscapeXML escapes the characters that would break tag well-formedness.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)
