package iobuffer

import (
	"bytes"
	"io"
	"sort"
)

// translator replaces byte sequences in everything written through it. The
// replacements are applied one after another in the order of their search
// strings. A write ending in what may be the start of a search string is
// held back until the next write or flush, so matches spanning writes are
// still found.
type translator struct {
	w       io.Writer
	from    [][]byte
	to      [][]byte
	pending []byte
}

func (t *translator) set(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	t.from = make([][]byte, len(keys))
	t.to = make([][]byte, len(keys))
	for i, k := range keys {
		t.from[i] = []byte(k)
		t.to[i] = []byte(m[k])
	}
}

func (t *translator) Write(p []byte) (int, error) {
	if len(t.from) == 0 {
		return t.w.Write(p)
	}

	data := append(t.pending, p...)
	cut := t.safeCut(data)
	t.pending = append([]byte(nil), data[cut:]...)

	if cut > 0 {
		if _, err := t.w.Write(t.replace(data[:cut])); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// safeCut returns how much of data can be translated now.
func (t *translator) safeCut(data []byte) int {
	cut := len(data)

	// hold back a tail that may begin a match
	for _, f := range t.from {
		for n := len(f) - 1; n > 0; n-- {
			if n <= len(data) && bytes.HasSuffix(data, f[:n]) {
				if len(data)-n < cut {
					cut = len(data) - n
				}
				break
			}
		}
	}

	// never split a whole match
	for _, f := range t.from {
		for i := cut - len(f) + 1; i < cut; i++ {
			if i >= 0 && i+len(f) <= len(data) && bytes.Equal(data[i:i+len(f)], f) {
				cut = i
				break
			}
		}
	}

	return cut
}

func (t *translator) replace(b []byte) []byte {
	for i, f := range t.from {
		b = bytes.ReplaceAll(b, f, t.to[i])
	}
	return b
}

func (t *translator) flush() error {
	if len(t.pending) == 0 {
		return nil
	}

	b := t.replace(t.pending)
	t.pending = nil
	_, err := t.w.Write(b)
	return err
}
