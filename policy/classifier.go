package policy

import (
	"strings"
	"unicode"

	"github.com/arloliu/splitdb/types"
)

// readKeyword is the only leading keyword routed to replicas.
const readKeyword = "SELECT"

// KeywordClassifier classifies commands by their leading keyword.
//
// Only commands whose first word is SELECT (any case) are reads. Everything
// else, including WITH ... SELECT, stored procedure calls and unparsable or
// empty text, is a write and goes to the primary.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a new KeywordClassifier.
//
// Returns:
//   - *KeywordClassifier: A stateless classifier
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify returns the Kind of a command.
//
// Parameters:
//   - command: Raw command text
//
// Returns:
//   - types.Kind: KindRead for SELECT statements, KindWrite otherwise
func (KeywordClassifier) Classify(command string) types.Kind {
	return Classify(command)
}

// Classify returns KindRead if the leading keyword of command is SELECT.
func Classify(command string) types.Kind {
	if strings.EqualFold(LeadingKeyword(command), readKeyword) {
		return types.KindRead
	}

	return types.KindWrite
}

// LeadingKeyword returns the first maximal run of letters in command.
//
// Whitespace, comment markers, parentheses and any other non-letters before
// the run are skipped. The empty string is returned when command has no
// letters at all.
func LeadingKeyword(command string) string {
	start := -1
	for i, r := range command {
		isLetter := unicode.IsLetter(r)
		if start < 0 {
			if isLetter {
				start = i
			}

			continue
		}
		if !isLetter {
			return command[start:i]
		}
	}

	if start < 0 {
		return ""
	}

	return command[start:]
}
