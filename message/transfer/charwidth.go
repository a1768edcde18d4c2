package transfer

import "strings"

// CharWidth reports how many bytes make up the character starting at b[0].
// The result may be larger than len(b) when the character continues past the
// end of b, in which case the caller waits for more input before encoding it.
// b is never empty.
type CharWidth func(b []byte) int

// SingleByteWidth treats every byte as a character.
func SingleByteWidth(b []byte) int {
	return 1
}

// UTF8Width measures UTF-8 characters. A broken sequence is cut short at the
// first byte that is not a continuation byte.
func UTF8Width(b []byte) int {
	c := b[0]

	var n int
	switch {
	case c < 0x80:
		return 1
	case c&0xE0 == 0xC0:
		n = 2
	case c&0xF0 == 0xE0:
		n = 3
	case c&0xF8 == 0xF0:
		n = 4
	default:
		return 1
	}

	for i := 1; i < n; i++ {
		if i >= len(b) {
			return n
		}
		if b[i]&0xC0 != 0x80 {
			return i
		}
	}

	return n
}

// UTF16Width treats every two bytes as a character.
func UTF16Width(b []byte) int {
	return 2
}

// DoubleByteWidth measures the common Asian multibyte charsets, where a byte
// with the high bit set starts a two byte character.
func DoubleByteWidth(b []byte) int {
	if b[0] < 0x80 {
		return 1
	}
	return 2
}

// CharWidthFor picks the CharWidth for the named charset. Unknown charsets
// are treated as single byte.
func CharWidthFor(charset string) CharWidth {
	switch cs := strings.ToLower(strings.TrimSpace(charset)); {
	case cs == "" || cs == "utf-8" || cs == "utf8":
		return UTF8Width
	case strings.HasPrefix(cs, "utf-16"), strings.HasPrefix(cs, "ucs-2"):
		return UTF16Width
	case cs == "shift_jis", cs == "sjis", cs == "euc-jp", cs == "euc-kr",
		cs == "gb2312", cs == "gbk", cs == "gb18030", cs == "big5", cs == "cp932":
		return DoubleByteWidth
	}
	return SingleByteWidth
}
