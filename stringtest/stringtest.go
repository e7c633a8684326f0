// Package stringtest provides helpers for constructing expected string
// output in tests.
package stringtest

import "strings"

// JoinLF joins multiple strings with LF line endings.
// Use this to construct expected test output with explicit line endings.
//
// Example:
//
//	want := stringtest.JoinLF(
//		"line1",
//		"line2",
//		"line3",
//	) // -> "line1\nline2\nline3"
func JoinLF(ss ...string) string {
	var sb strings.Builder
	for i, s := range ss {
		if i > 0 {
			sb.WriteByte('\n')
		}

		sb.WriteString(s)
	}

	return sb.String()
}

// JoinSOH joins multiple strings with the 0x01 field separator used by the
// bulk-load wire format.
//
// Example:
//
//	row := stringtest.JoinSOH("1", "alpha", `\N`) // -> "1\x01alpha\x01\\N"
func JoinSOH(ss ...string) string {
	var sb strings.Builder
	for i, s := range ss {
		if i > 0 {
			sb.WriteByte(0x01)
		}

		sb.WriteString(s)
	}

	return sb.String()
}
