package field

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedCharset is returned when a charset name cannot be mapped onto a
// known text encoding.
var ErrUnsupportedCharset = errors.New("unsupported charset")

// DefaultCharset is the charset used for encoded-words when none is set.
const DefaultCharset = "utf-8"

// IsUTF8 returns true if the named charset is utf-8 (or unnamed, which we
// treat as utf-8).
func IsUTF8(charset string) bool {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// LookupCharset returns the text encoding for the given MIME charset name.
func LookupCharset(charset string) (encoding.Encoding, error) {
	if IsUTF8(charset) {
		return unicode.UTF8, nil
	}

	if e, err := ianaindex.MIME.Encoding(charset); err == nil && e != nil {
		return e, nil
	}

	if e, err := htmlindex.Get(charset); err == nil {
		return e, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCharset, charset)
}

// CharsetReader returns a reader that translates text in the named charset
// into utf-8. Its signature matches mime.WordDecoder.CharsetReader.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	if IsUTF8(charset) {
		return input, nil
	}

	e, err := LookupCharset(charset)
	if err != nil {
		return nil, err
	}

	return transform.NewReader(input, e.NewDecoder()), nil
}

// CharsetWriter returns a writer that translates utf-8 text written to it
// into the named charset before passing it on to w. The returned writer must
// be closed to flush any buffered bytes.
func CharsetWriter(charset string, w io.Writer) (io.WriteCloser, error) {
	e, err := LookupCharset(charset)
	if err != nil {
		return nil, err
	}

	return transform.NewWriter(w, e.NewEncoder()), nil
}

// ToCharset translates a utf-8 string into the named charset.
func ToCharset(charset, s string) (string, error) {
	if IsUTF8(charset) {
		return s, nil
	}

	e, err := LookupCharset(charset)
	if err != nil {
		return "", err
	}

	return e.NewEncoder().String(s)
}

// IsPlain returns true if the string can be placed in a header without
// encoding: printable US-ASCII, spaces and tabs only.
func IsPlain(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < ' ' && c != '\t') || c > '~' {
			return false
		}
	}
	return true
}

// Encode returns the body ready for a header. Printable ASCII bodies are
// returned unchanged. Anything else becomes a sequence of Q-encoded
// encoded-words in the given charset. If the text cannot be represented in
// that charset, utf-8 is used instead.
func Encode(charset, body string) string {
	return EncodeOffset(charset, body, 0)
}

// EncodeOffset works like Encode, but keeps the first encoded-word short
// enough to fit on a line that already holds offset characters (usually the
// field name and colon).
func EncodeOffset(charset, body string, offset int) string {
	if IsPlain(body) {
		return body
	}

	if charset == "" {
		charset = DefaultCharset
	}

	cs, err := ToCharset(charset, body)
	if err != nil {
		charset, cs = DefaultCharset, body
	}

	return encodeWords(strings.ToLower(charset), cs, offset)
}

// maxEncodedWordLength is the RFC 2047 limit on a single encoded-word.
const maxEncodedWordLength = 75

// encodeWords Q-encodes s into as many encoded-words as needed. Multi-byte
// utf-8 characters are never split across words.
func encodeWords(charset, s string, offset int) string {
	const hex = "0123456789ABCDEF"

	prefix := "=?" + charset + "?q?"
	overhead := len(prefix) + 2

	limit := EncodedWordMaxLineLength - offset
	if limit > maxEncodedWordLength {
		limit = maxEncodedWordLength
	}
	if limit < overhead+12 {
		limit = maxEncodedWordLength
	}

	isUTF8 := IsUTF8(charset)

	var out, word strings.Builder
	flush := func() {
		if out.Len() > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(prefix)
		out.WriteString(word.String())
		out.WriteString("?=")
		word.Reset()
	}

	for i := 0; i < len(s); {
		n := 1
		if isUTF8 {
			_, n = utf8.DecodeRuneInString(s[i:])
		}

		var enc strings.Builder
		for _, c := range []byte(s[i : i+n]) {
			switch {
			case c == ' ':
				enc.WriteByte('_')
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
				c == '!', c == '*', c == '+', c == '-', c == '/':
				enc.WriteByte(c)
			default:
				enc.WriteByte('=')
				enc.WriteByte(hex[c>>4])
				enc.WriteByte(hex[c&0x0f])
			}
		}

		if word.Len() > 0 && overhead+word.Len()+enc.Len() > limit {
			flush()
			limit = maxEncodedWordLength
		}
		word.WriteString(enc.String())
		i += n
	}
	flush()

	return out.String()
}

// Decode transforms a header body containing encoded-words back into utf-8.
func Decode(body string) (string, error) {
	if !strings.Contains(body, "=?") {
		return body, nil
	}

	dec := &mime.WordDecoder{CharsetReader: CharsetReader}
	return dec.DecodeHeader(body)
}
