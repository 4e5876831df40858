package salesforce

import "strings"

// soqlEscaper covers the SOQL string literal escape sequences
var soqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\b", `\b`,
	"\f", `\f`,
)

// Quote returns s as a quoted SOQL string literal
func Quote(s string) string {
	return "'" + soqlEscaper.Replace(s) + "'"
}
