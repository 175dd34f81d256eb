package tokenizer

// Reassembler bridges arbitrary transport chunk boundaries and the lexer's
// token-boundary requirement. It owns the carry-over tail for one stream:
// each Feed prepends the previous tail to the new chunk, so the lexer only
// ever sees delimiters it can fully interpret. Safe down to one-byte-at-a-
// time delivery without losing or duplicating a delimiter.
//
// One Reassembler per stream; not safe for concurrent use.
type Reassembler struct {
	table  *MarkerTable
	tail   string
	closed bool
}

// NewReassembler creates a Reassembler for the given marker table.
func NewReassembler(table *MarkerTable) *Reassembler {
	return &Reassembler{table: table}
}

// Feed lexes chunk (with any held-back tail prepended) and returns the
// fully interpreted tokens. Returns nil after Flush.
func (r *Reassembler) Feed(chunk string) []Token {
	if r.closed {
		return nil
	}
	tokens, tail := Lex(r.table, r.tail+chunk)
	r.tail = tail
	return tokens
}

// Flush forces interpretation of any remaining tail as literal text and
// closes the stream. Flushing an already-flushed stream returns nothing.
func (r *Reassembler) Flush() []Token {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.tail == "" {
		return nil
	}
	tail := r.tail
	r.tail = ""
	return []Token{{Kind: KindLiteral, Value: tail, Raw: tail}}
}

// Pending returns the number of held-back bytes, for diagnostics.
func (r *Reassembler) Pending() int {
	return len(r.tail)
}
