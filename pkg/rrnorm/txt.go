package rrnorm

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// joinCharacterStrings decodes TXT segments held in zone file
// escape form and concatenates them without a separator.
func joinCharacterStrings(segs []string) (string, error) {
	var b strings.Builder
	for _, s := range segs {
		if err := unescapeInto(&b, s); err != nil {
			return "", err
		}
	}
	out := b.String()
	if !utf8.ValidString(out) {
		return "", errors.New("txt data is not valid utf-8")
	}
	return out, nil
}

// unescapeInto handles \X and \DDD.
func unescapeInto(b *strings.Builder, s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return errors.New("dangling escape in txt segment")
		}
		if !isDigit(s[i]) {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) || !isDigit(s[i+1]) || !isDigit(s[i+2]) {
			return errors.New("bad decimal escape in txt segment")
		}
		n := int(s[i]-'0')*100 + int(s[i+1]-'0')*10 + int(s[i+2]-'0')
		if n > 255 {
			return errors.New("decimal escape out of range in txt segment")
		}
		b.WriteByte(byte(n))
		i += 2
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
