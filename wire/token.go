package wire

import "fmt"

// A TokenKind identifies the structural shape of a lexed token.
type TokenKind int

const (
	// Integer is a complete i<digits>e integer.
	Integer TokenKind = iota + 1
	// ByteString is a complete <length>:<bytes> byte string.
	ByteString
	// ListStart is the 'l' opening a list.
	ListStart
	// DictStart is the 'd' opening a dictionary.
	DictStart
	// End is the 'e' closing the innermost open list or dictionary.
	End
)

func (k TokenKind) String() string {
	switch k {
	case Integer:
		return "integer"
	case ByteString:
		return "byte string"
	case ListStart:
		return "list"
	case DictStart:
		return "dict"
	case End:
		return "end marker"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// A Token is one structural event read off the wire. Int is set for
// Integer tokens, Bytes for ByteString tokens, and neither for the
// aggregate delimiters.
type Token struct {
	Kind  TokenKind
	Int   int64
	Bytes []byte
}
