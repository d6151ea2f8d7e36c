package strings

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// TrimPrefixAll removes prefix from s, repeatedly.
//
//	TrimPrefixAll("//api/knowls", "/")  // -> "api/knowls"
func TrimPrefixAll(s, prefix string) string {
	if prefix == "" {
		return s
	}
	for strings.HasPrefix(s, prefix) {
		s = s[len(prefix):]
	}
	return s
}

// SuppySuffix appends suffix to text, unless text already ends with it.
func SuppySuffix(text, suffix string) string {
	if strings.HasSuffix(text, suffix) {
		return text
	}
	return text + suffix
}

// RandomHex returns a random hex string (/[0-9a-f]*/) with length l.
func RandomHex(l uint) (string, error) {
	if l == 0 {
		return "", nil
	}

	// hex doubles length. odd l needs one more byte.
	buffer := make([]byte, l/2+1)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer)[:l], nil
}
