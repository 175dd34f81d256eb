package tokenizer

// Lex scans input against the marker table and returns the tokens it could
// fully interpret plus the unconsumed tail. The tail is non-empty when input
// ends with a strict prefix of a marker spelling (or a marker whose value is
// still incomplete); the caller must prepend it to the next fragment.
//
// Unrecognized bracket-like sequences are plain literal text, never errors.
func Lex(table *MarkerTable, input string) ([]Token, string) {
	var tokens []Token
	litStart := 0

	flushLiteral := func(end int) {
		if end > litStart {
			text := input[litStart:end]
			tokens = append(tokens, Token{Kind: KindLiteral, Value: text, Raw: text})
		}
	}

	i := 0
	for i < len(input) {
		mk, n, value, partial := table.matchAt(input[i:])
		if mk != nil {
			flushLiteral(i)
			tokens = append(tokens, Token{Kind: mk.Kind, Value: value, Raw: input[i : i+n]})
			i += n
			litStart = i
			continue
		}
		if partial {
			flushLiteral(i)
			return tokens, input[i:]
		}
		i++
	}
	flushLiteral(len(input))
	return tokens, ""
}
