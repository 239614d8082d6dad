// Package envelopes provides the shared framing of the messages passed
// between nostr clients and relays, JSON arrays whose first element is a
// string label that identifies the type of the remainder.
package envelopes

import (
	"troczen.dev/pkg/utils/errorf"
)

func isWs(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Identify reads the label of an envelope and returns it along with the
// remainder of the message, positioned at the first byte after the comma
// following the label.
func Identify(b []byte) (t string, rem []byte, err error) {
	rem = b
	for ; len(rem) > 0 && isWs(rem[0]); rem = rem[1:] {
	}
	if len(rem) == 0 || rem[0] != '[' {
		err = errorf.E("envelope must begin with '[': '%s'", b)
		return
	}
	rem = rem[1:]
	for ; len(rem) > 0 && isWs(rem[0]); rem = rem[1:] {
	}
	if len(rem) == 0 || rem[0] != '"' {
		err = errorf.E("envelope label must be quoted: '%s'", b)
		return
	}
	rem = rem[1:]
	var label []byte
	for ; len(rem) > 0; rem = rem[1:] {
		if rem[0] == '"' {
			rem = rem[1:]
			break
		}
		label = append(label, rem[0])
	}
	if len(label) == 0 {
		err = errorf.E("envelope label is empty: '%s'", b)
		return
	}
	for ; len(rem) > 0 && isWs(rem[0]); rem = rem[1:] {
	}
	if len(rem) == 0 {
		err = errorf.E("envelope ended before content: '%s'", b)
		return
	}
	// a label with no content, eg ["AUTH"] is not part of the protocol but
	// leave the bracket in place for the unmarshaler to trip on.
	if rem[0] == ',' {
		rem = rem[1:]
	}
	t = string(label)
	return
}

// Marshal appends an envelope with the given label to dst, the content
// between the comma after the label and the closing bracket produced by the
// provided function.
func Marshal(
	dst []byte, label string, f func(dst []byte) (b []byte),
) (b []byte) {
	b = dst
	b = append(b, '[', '"')
	b = append(b, label...)
	b = append(b, '"', ',')
	b = f(b)
	b = append(b, ']')
	return
}

// Comma consumes whitespace and the comma between two elements of an
// envelope, returning what follows it.
func Comma(r []byte) (rem []byte, err error) {
	rem = r
	for ; len(rem) > 0 && isWs(rem[0]); rem = rem[1:] {
	}
	if len(rem) == 0 || rem[0] != ',' {
		err = errorf.E("expected ',' between envelope elements: '%s'", r)
		return
	}
	rem = rem[1:]
	return
}

// SkipToTheEnd consumes whitespace and the closing bracket of an envelope,
// returning what follows it. Unmarshalers for the final element of an
// envelope use this to verify the frame was complete.
func SkipToTheEnd(r []byte) (rem []byte, err error) {
	rem = r
	for ; len(rem) > 0 && isWs(rem[0]); rem = rem[1:] {
	}
	if len(rem) == 0 || rem[0] != ']' {
		err = errorf.E("envelope not closed: '%s'", r)
		return
	}
	rem = rem[1:]
	return
}
