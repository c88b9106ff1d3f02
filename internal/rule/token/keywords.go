package token

import "strings"

var keywords = map[string]Kind{
	"IF":    IF,
	"THEN":  THEN,
	"ELSE":  ELSE,
	"ENDIF": ENDIF,
}

// Lookup returns the keyword Kind for ident (case-insensitive), or
// (IDENT, false) if ident is not a keyword.
func Lookup(ident string) (Kind, bool) {
	k, ok := keywords[strings.ToUpper(ident)]
	if !ok {
		return IDENT, false
	}
	return k, true
}
