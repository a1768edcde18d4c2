package field

import (
	"bytes"
	"errors"
	"io"
)

const (
	DefaultFoldIndent        = " " // indent placed before folded lines that lack whitespace
	DefaultMaxLineLength     = 78  // we prefer header lines no longer than this
	EncodedWordMaxLineLength = 76  // lines carrying encoded-words are kept to this
	DefaultForcedFoldLength  = 998 // lines longer than this get broken no matter what

	DoNotFold = -1 // we prefer not to fold at all
)

var (
	// DefaultFoldEncoding folds at 78 characters.
	DefaultFoldEncoding = &FoldEncoding{
		DefaultFoldIndent,
		DefaultMaxLineLength,
		DefaultForcedFoldLength,
	}

	// DoNotFoldEncoding is a FoldEncoding that doesn't perform folding.
	DoNotFoldEncoding = &FoldEncoding{
		DefaultFoldIndent,
		DoNotFold,
		DoNotFold,
	}
)

var (
	// ErrFoldIndentSpace is returned by NewFoldEncoding when a non-space/non-tab
	// character is put in the foldIndent setting.
	ErrFoldIndentSpace = errors.New("fold indent may only contains spaces and tabs")

	// ErrFoldIndentTooShort is returned by NewFoldEncoding when the foldIndent
	// is empty.
	ErrFoldIndentTooShort = errors.New("fold indent must contain at least one space or tab")

	// ErrFoldLengthTooLong is returned by NewFoldEncoding when the max line
	// length is longer than the forced fold length.
	ErrFoldLengthTooLong = errors.New("max line length must be no longer than the forced fold length")

	// ErrFoldLengthTooShort is returned by NewFoldEncoding when either length is
	// too short to hold anything useful.
	ErrFoldLengthTooShort = errors.New("max line length and forced fold length cannot be too short")
)

// FoldEncoding describes how header fields are folded onto multiple lines.
// Folding only ever happens in front of existing whitespace, so the continuation
// line starts with that whitespace and unfolding restores the original value.
type FoldEncoding struct {
	foldIndent       string
	maxLineLength    int
	forcedFoldLength int
}

// NewFoldEncoding creates a new FoldEncoding. The foldIndent is only used when
// a line has to be forcibly broken where there is no whitespace.
func NewFoldEncoding(
	foldIndent string,
	maxLineLength,
	forcedFoldLength int,
) (*FoldEncoding, error) {
	if len(foldIndent) < 1 {
		return nil, ErrFoldIndentTooShort
	}

	if bytes.IndexFunc([]byte(foldIndent), func(c rune) bool { return !isSpace(c) }) >= 0 {
		return nil, ErrFoldIndentSpace
	}

	if maxLineLength == DoNotFold || forcedFoldLength == DoNotFold {
		return &FoldEncoding{foldIndent, DoNotFold, DoNotFold}, nil
	}

	if maxLineLength < 10 || forcedFoldLength < 10 {
		return nil, ErrFoldLengthTooShort
	}

	if maxLineLength > forcedFoldLength {
		return nil, ErrFoldLengthTooLong
	}

	return &FoldEncoding{foldIndent, maxLineLength, forcedFoldLength}, nil
}

// MaxLineLength returns the preferred maximum line length.
func (vf *FoldEncoding) MaxLineLength() int {
	return vf.maxLineLength
}

func isSpace(c rune) bool { return c == ' ' || c == '\t' }

// Unfold removes the line breaks from a folded field.
func (vf *FoldEncoding) Unfold(f []byte) []byte {
	uf := make([]byte, 0, len(f))
	for _, b := range f {
		if b != '\r' && b != '\n' {
			uf = append(uf, b)
		}
	}
	return uf
}

// Fold writes the field given, breaking it into lines no longer than the max
// line length wherever whitespace allows it. Lines containing encoded-words
// are limited to EncodedWordMaxLineLength. No line break is written after the
// last line.
func (vf *FoldEncoding) Fold(out io.Writer, f []byte, lb []byte) (int64, error) {
	total := int64(0)
	write := func(b []byte) error {
		n, err := out.Write(b)
		total += int64(n)
		return err
	}

	limit := vf.maxLineLength
	if limit == DoNotFold {
		return total, write(f)
	}

	if limit > EncodedWordMaxLineLength && bytes.Contains(f, []byte("=?")) {
		limit = EncodedWordMaxLineLength
	}

	// never fold between the field name and the first word of the body
	min := 1
	if colon := bytes.IndexByte(f, ':'); colon >= 0 {
		min = colon + 2
	}

	line := f
	for len(line) > limit {
		ix := -1
		if min <= limit {
			if i := bytes.LastIndexAny(line[min:limit+1], " \t"); i >= 0 {
				ix = i + min
			}
		}

		if ix < 0 {
			// no space early enough, so take the first one we can find
			if i := bytes.IndexAny(line[min:], " \t"); i >= 0 {
				ix = i + min
			}
		}

		forced := false
		if ix < 0 || ix > vf.forcedFoldLength {
			if len(line) <= vf.forcedFoldLength {
				break
			}
			ix = vf.forcedFoldLength
			forced = true
		}

		if err := write(line[:ix]); err != nil {
			return total, err
		}
		if err := write(lb); err != nil {
			return total, err
		}
		if forced {
			if err := write([]byte(vf.foldIndent)); err != nil {
				return total, err
			}
		}

		line = line[ix:]
		min = 1
	}

	return total, write(line)
}
