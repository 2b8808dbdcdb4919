// Package speechtext reshapes model output so it reads naturally through text-to-speech.
package speechtext

import (
	"regexp"
	"strings"
)

var (
	bulletRe    = regexp.MustCompile(`(?m)^\s*[-*•–]\s+`)
	numberingRe = regexp.MustCompile(`(?m)^\s*\d+[).\-:]\s+`)
	blankRunRe  = regexp.MustCompile(`\n{2,}`)
	spaceRunRe  = regexp.MustCompile(`\s{2,}`)
	commaRe     = regexp.MustCompile(`\s+,\s*`)
	periodRe    = regexp.MustCompile(`\s+\.\s*`)
)

// CleanForSpeech drops list bullets and numbering and folds the text into one paragraph.
func CleanForSpeech(text string) string {
	text = bulletRe.ReplaceAllString(text, "")
	text = numberingRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, " ")
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(text, " "))
}

// PaceSlow inserts pauses: a comma after words 2, 5 and 8 of every ten-word run and a
// period after the tenth.
func PaceSlow(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words)+len(words)/2)
	count := 0
	for _, w := range words {
		out = append(out, w)
		count++
		switch count {
		case 2, 5, 8:
			out = append(out, ",")
		}
		if count >= 10 {
			out = append(out, ".")
			count = 0
		}
	}
	s := strings.Join(out, " ")
	s = commaRe.ReplaceAllString(s, ", ")
	s = periodRe.ReplaceAllString(s, ". ")
	return strings.TrimSpace(s)
}
