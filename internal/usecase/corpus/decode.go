package corpus

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	encodingUTF8     = "utf-8"
	fallbackEncoding = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns b as a string and the name of the encoding used.
// UTF-8 is tried first; otherwise the charset is detected, and windows-1252
// (a superset of latin-1 that decodes any byte) is the last resort.
func decodeText(b []byte) (string, string) {
	if trimmed := bytes.TrimPrefix(b, utf8BOM); utf8.Valid(trimmed) {
		return string(trimmed), encodingUTF8
	}

	if enc, name, ok := detect(b); ok {
		if out, err := enc.NewDecoder().Bytes(b); err == nil && utf8.Valid(out) {
			return string(out), name
		}
	}

	out, _ := charmap.Windows1252.NewDecoder().Bytes(b) // total over all bytes
	return string(out), fallbackEncoding
}

func detect(b []byte) (encoding.Encoding, string, bool) {
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil || res == nil || strings.EqualFold(res.Charset, "UTF-8") {
		return nil, "", false
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return nil, "", false
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(res.Charset)
	}
	return enc, name, true
}
