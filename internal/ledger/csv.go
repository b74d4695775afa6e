package ledger

type quoteState int

const (
	outside quoteState = iota
	inQuotes
	afterBackslash
)

// unescapeBackslashes rewrites backslash escapes inside quoted CSV fields
// into the doubled-quote form encoding/csv understands. Bytes outside of
// quotes are copied through untouched.
func unescapeBackslashes(data []byte) []byte {
	out := make([]byte, 0, len(data))
	s := outside
	for _, b := range data {
		switch s {
		case outside:
			out = append(out, b)
			if b == '"' {
				s = inQuotes
			}
		case inQuotes:
			switch b {
			case '\\':
				s = afterBackslash
			case '"':
				out = append(out, b)
				s = outside
			default:
				out = append(out, b)
			}
		case afterBackslash:
			switch b {
			case '"':
				out = append(out, '"', '"')
			case 'n':
				out = append(out, '\n')
			default:
				out = append(out, b)
			}
			s = inQuotes
		}
	}
	return out
}
