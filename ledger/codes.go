package ledger

import (
	"fmt"
	"strings"
	"unicode"
)

// maxCodeLength bounds user-supplied reconciliation codes.
const maxCodeLength = 12

// LettrageCode returns the n-th code (0-based) of the lettrage sequence:
// A, B, ..., Z, AA, AB, ..., ZZ, AAA, ...
func LettrageCode(n int) string {
	var buf []byte
	for n >= 0 {
		buf = append(buf, byte('A'+n%26))
		n = n/26 - 1
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// nextCode returns the first lettrage code at or after *cursor that is not
// in use, and advances the cursor past it.
func nextCode(cursor *int, inUse func(string) bool) string {
	for {
		code := LettrageCode(*cursor)
		*cursor++
		if !inUse(code) {
			return code
		}
	}
}

// NormalizeCode validates a user-supplied reconciliation code and returns it
// upper-cased. Codes are 1 to 12 letters, digits, '-' or '_'.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("code is empty")
	}
	if len(code) > maxCodeLength {
		return "", fmt.Errorf("code %q is longer than %d characters", code, maxCodeLength)
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			return "", fmt.Errorf("code %q contains invalid character %q", code, r)
		}
	}
	return code, nil
}
