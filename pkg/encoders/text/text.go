// Package text implements the string escaping and JSON fragment helpers used
// by the event, tag and filter codecs.
//
// The escaping rules are the ones the nostr canonical event encoding
// specifies: the only characters escaped are backspace, tab, newline, form
// feed, carriage return, double quote and backslash. Everything else,
// including raw UTF-8, passes through verbatim. Unescaping additionally
// tolerates the \/ and \uXXXX forms that standard JSON encoders emit.
package text

import (
	"unicode/utf16"
	"unicode/utf8"

	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/errorf"
)

// NostrEscape appends the escaped form of src to dst.
func NostrEscape(dst, src []byte) []byte {
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\r':
			dst = append(dst, '\\', 'r')
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// NostrUnescape reverses NostrEscape in place and returns the shortened
// slice. Unknown escapes pass through with the backslash dropped, and \uXXXX
// sequences, including surrogate pairs, decode to UTF-8.
func NostrUnescape(b []byte) []byte {
	var w int
	for r := 0; r < len(b); {
		if b[r] != '\\' || r == len(b)-1 {
			b[w] = b[r]
			w++
			r++
			continue
		}
		r++
		switch b[r] {
		case '"':
			b[w] = '"'
			w, r = w+1, r+1
		case '\\':
			b[w] = '\\'
			w, r = w+1, r+1
		case '/':
			b[w] = '/'
			w, r = w+1, r+1
		case 'b':
			b[w] = '\b'
			w, r = w+1, r+1
		case 't':
			b[w] = '\t'
			w, r = w+1, r+1
		case 'n':
			b[w] = '\n'
			w, r = w+1, r+1
		case 'f':
			b[w] = '\f'
			w, r = w+1, r+1
		case 'r':
			b[w] = '\r'
			w, r = w+1, r+1
		case 'u':
			ru, n := decodeUnicodeEscape(b[r-1:])
			if n == 0 {
				b[w] = b[r]
				w, r = w+1, r+1
				break
			}
			var buf [utf8.UTFMax]byte
			l := utf8.EncodeRune(buf[:], ru)
			copy(b[w:], buf[:l])
			w += l
			r += n - 1
		default:
			b[w] = b[r]
			w, r = w+1, r+1
		}
	}
	return b[:w]
}

// decodeUnicodeEscape reads a \uXXXX sequence, joining UTF-16 surrogate
// pairs, and returns the rune with the number of bytes consumed, or 0 when
// the sequence is malformed.
func decodeUnicodeEscape(b []byte) (r rune, n int) {
	if len(b) < 6 || b[0] != '\\' || b[1] != 'u' {
		return 0, 0
	}
	u1, ok := hex4(b[2:6])
	if !ok {
		return 0, 0
	}
	if utf16.IsSurrogate(u1) {
		if len(b) >= 12 && b[6] == '\\' && b[7] == 'u' {
			if u2, ok2 := hex4(b[8:12]); ok2 {
				if c := utf16.DecodeRune(u1, u2); c != utf8.RuneError {
					return c, 12
				}
			}
		}
		return utf8.RuneError, 6
	}
	return u1, 6
}

func hex4(b []byte) (r rune, ok bool) {
	for i := 0; i < 4; i++ {
		var v rune
		switch {
		case b[i] >= '0' && b[i] <= '9':
			v = rune(b[i] - '0')
		case b[i] >= 'a' && b[i] <= 'f':
			v = rune(b[i]-'a') + 10
		case b[i] >= 'A' && b[i] <= 'F':
			v = rune(b[i]-'A') + 10
		default:
			return 0, false
		}
		r = r<<4 | v
	}
	return r, true
}

// JSONKey appends a quoted object key and colon to dst.
func JSONKey(dst, k []byte) []byte {
	dst = append(dst, '"')
	dst = append(dst, k...)
	dst = append(dst, '"', ':')
	return dst
}

// AppendQuote appends src wrapped in double quotes to dst, transformed by the
// given encoder. A nil encoder appends src verbatim.
func AppendQuote(dst, src []byte, enc func(dst, src []byte) []byte) []byte {
	dst = append(dst, '"')
	if enc != nil {
		dst = enc(dst, src)
	} else {
		dst = append(dst, src...)
	}
	dst = append(dst, '"')
	return dst
}

func skipWs(b []byte) []byte {
	for len(b) > 0 &&
		(b[0] == ' ' || b[0] == '\t' || b[0] == '\n' || b[0] == '\r') {
		b = b[1:]
	}
	return b
}

// UnmarshalQuoted reads a double quoted string at the start of b, unescapes
// it, and returns the content with the remainder after the closing quote.
func UnmarshalQuoted(b []byte) (content, r []byte, err error) {
	r = skipWs(b)
	if len(r) == 0 || r[0] != '"' {
		err = errorf.E("expected quoted string at '%s'", b)
		return
	}
	r = r[1:]
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '\\':
			i++
		case '"':
			content = make([]byte, i)
			copy(content, r[:i])
			content = NostrUnescape(content)
			r = r[i+1:]
			return
		}
	}
	err = errorf.E("unterminated quoted string in '%s'", b)
	return
}

// UnmarshalHex reads a double quoted hexadecimal string at the start of b and
// returns its binary decoding with the remainder after the closing quote.
func UnmarshalHex(b []byte) (h, r []byte, err error) {
	r = skipWs(b)
	if len(r) == 0 || r[0] != '"' {
		err = errorf.E("expected quoted hex string at '%s'", b)
		return
	}
	r = r[1:]
	var end int
	for ; end < len(r); end++ {
		if r[end] == '"' {
			break
		}
	}
	if end == len(r) {
		err = errorf.E("unterminated quoted hex string in '%s'", b)
		return
	}
	if h, err = hex.DecAppend(nil, r[:end]); chk.E(err) {
		return
	}
	r = r[end+1:]
	return
}

// UnmarshalHexArray reads a JSON array of quoted hex strings that must each
// decode to size bytes, returning the decoded values and the remainder after
// the closing bracket.
func UnmarshalHexArray(b []byte, size int) (t [][]byte, r []byte, err error) {
	r = skipWs(b)
	if len(r) == 0 || r[0] != '[' {
		err = errorf.E("expected array at '%s'", b)
		return
	}
	r = r[1:]
	for {
		r = skipWs(r)
		if len(r) == 0 {
			err = errorf.E("unterminated array in '%s'", b)
			return
		}
		switch r[0] {
		case ']':
			r = r[1:]
			return
		case ',':
			r = r[1:]
		default:
			var h []byte
			if h, r, err = UnmarshalHex(r); chk.E(err) {
				return
			}
			if len(h) != size {
				err = errorf.E(
					"invalid hex array element size, got %d expect %d",
					len(h), size,
				)
				return
			}
			t = append(t, h)
		}
	}
}

// UnmarshalStringArray reads a JSON array of quoted strings, returning the
// unescaped values and the remainder after the closing bracket.
func UnmarshalStringArray(b []byte) (t [][]byte, r []byte, err error) {
	r = skipWs(b)
	if len(r) == 0 || r[0] != '[' {
		err = errorf.E("expected array at '%s'", b)
		return
	}
	r = r[1:]
	for {
		r = skipWs(r)
		if len(r) == 0 {
			err = errorf.E("unterminated array in '%s'", b)
			return
		}
		switch r[0] {
		case ']':
			r = r[1:]
			return
		case ',':
			r = r[1:]
		default:
			var s []byte
			if s, r, err = UnmarshalQuoted(r); chk.E(err) {
				return
			}
			t = append(t, s)
		}
	}
}

// MarshalHexArray appends a JSON array of hex encoded values to dst.
func MarshalHexArray(dst []byte, t [][]byte) []byte {
	dst = append(dst, '[')
	for i := range t {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = AppendQuote(dst, t[i], hex.EncAppend)
	}
	dst = append(dst, ']')
	return dst
}
