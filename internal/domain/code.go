package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DefaultCodePrefix is used when a user's name yields no initials.
const DefaultCodePrefix = "TSK"

// maxPrefixLen caps the initials prefix at three characters.
const maxPrefixLen = 3

// Initials derives the task code prefix from a user's display name:
// the first character of each whitespace-separated word, uppercased,
// truncated to three characters. A name with no usable words falls
// back to DefaultCodePrefix ("Dimas Maulana" -> "DM").
func Initials(name string) string {
	var initials []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			initials = append(initials, unicode.ToUpper(r))
			break
		}
		if len(initials) == maxPrefixLen {
			break
		}
	}

	if len(initials) == 0 {
		return DefaultCodePrefix
	}
	return string(initials)
}

// FormatCode joins a prefix and sequence number into a task code,
// zero-padding the number to at least three digits ("DM", 1 -> "DM-001").
func FormatCode(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// CodeSequence parses the numeric suffix of a task code for the given
// prefix. It returns false for codes that do not split into exactly two
// dash-separated segments, do not match the prefix, or whose suffix is
// not a valid integer. Such codes are skipped during allocation rather
// than treated as errors.
func CodeSequence(code, prefix string) (int, bool) {
	parts := strings.Split(code, "-")
	if len(parts) != 2 || parts[0] != prefix {
		return 0, false
	}

	seq, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return seq, true
}
