package compiler

import "strings"

// quoteEscape doubles embedded single quotes. Every string literal reaching
// SQL goes through this one function (§9 "SQL string hygiene") — numbers,
// booleans, and tagged scalars have their own, distinct emission paths and
// never pass through here.
func quoteEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// quoteStringLiteral renders a Go string as a single-quoted SQL literal.
func quoteStringLiteral(s string) string {
	return "'" + quoteEscape(s) + "'"
}

// quoteIdentifier renders an identifier for JSON-path-segment emission
// (always single-quoted in this grammar, per §4.2/§4.7 — JSON keys are
// never double-quoted identifiers).
func quoteIdentifier(s string) string {
	return "'" + quoteEscape(s) + "'"
}
