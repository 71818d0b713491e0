package capture

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes, drops combining marks and recomposes.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Letters that carry a stroke rather than a combining mark.
var strokeLetters = strings.NewReplacer("đ", "d", "Đ", "D", "ø", "o", "Ø", "O", "ł", "l", "Ł", "L")

// Slug turns a label name into a filesystem-safe folder component:
// diacritics stripped, lowercased, runs of other characters collapsed to "_".
func Slug(label string) string {
	folded, _, err := transform.String(foldDiacritics, strokeLetters.Replace(label))
	if err != nil {
		folded = label
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "label"
	}
	return b.String()
}

// FolderName is the per-label directory under the features root.
func FolderName(classIdx int, label string) string {
	return fmt.Sprintf("class_%04d_%s", classIdx, Slug(label))
}
