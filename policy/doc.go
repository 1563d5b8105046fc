// Package policy decides whether a command is a read or a write.
//
// The decision looks only at the leading keyword: the first run of letters
// after any whitespace, parentheses, digits or punctuation. If that word is
// SELECT (compared case-insensitively) the command is a read and may be
// served by a replica. Everything else is a write and goes to the primary.
//
//	policy.Classify("  select * from users")           // types.KindRead
//	policy.Classify("UPDATE users SET name = 'x'")     // types.KindWrite
//	policy.Classify("WITH t AS (SELECT 1) SELECT * ...") // types.KindWrite
//	policy.Classify("")                                 // types.KindWrite
//
// The rule is deliberately coarse. A misclassified read only costs primary
// capacity, while a misclassified write would be rejected by a read-only
// replica, so ambiguous text is treated as a write.
//
// KeywordClassifier wraps Classify for callers that want to inject a
// classifier through splitdb.WithClassifier.
package policy
