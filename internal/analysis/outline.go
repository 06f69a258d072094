package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Outline counts structural markers of a resume.
type Outline struct {
	Headings int
	Bullets  int
}

var bulletRunes = map[rune]bool{
	'•': true, '●': true, '▪': true, '◦': true, '‣': true, '■': true, '–': true,
}

// OutlineOf counts markdown headings and bullet markers, line by line.
func OutlineOf(text string) Outline {
	var outline Outline
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case isHeading(line):
			outline.Headings++
		case isBullet(line):
			outline.Bullets++
		}
	}
	return outline
}

func isHeading(line string) bool {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	return level > 0 && level <= 6 && (level == len(line) || line[level] == ' ')
}

func isBullet(line string) bool {
	if len(line) >= 2 && strings.ContainsRune("-*+", rune(line[0])) && line[1] == ' ' {
		return true
	}

	r, size := utf8.DecodeRuneInString(line)
	if !bulletRunes[r] {
		return false
	}
	if size == len(line) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(line[size:])
	return unicode.IsSpace(next) || r != '–'
}
