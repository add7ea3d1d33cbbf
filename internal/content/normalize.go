package content

import (
	"strings"
	"unicode"
)

// speechStrip lists characters that trip up downstream speech synthesis
// when left in prompt text: markup remnants, decorative separators, and
// enclosing symbols that models tend to read aloud.
const speechStrip = "*_#`~|<>[]{}\\^="

// NormalizeForSpeech prepares chapter text for actions that feed the
// TTS pipeline. It strips decorative characters and collapses runs of
// whitespace while keeping sentence punctuation intact.
func NormalizeForSpeech(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := false
	for _, r := range text {
		if strings.ContainsRune(speechStrip, r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
