package clocktime

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RecordName builds the human label "{Person}-{YYYY-MM-DD}" for a punch
// the person comes from the email local part, the date from in shown in loc
func RecordName(subjectID string, in time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return PersonName(subjectID) + "-" + in.In(loc).Format("2006-01-02")
}

// PersonName derives a display name from a subject id
// "jane.doe+work@example.com" becomes "Jane Doe"
func PersonName(subjectID string) string {
	local := strings.TrimSpace(subjectID)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == ' '
	})
	if len(words) == 0 {
		return "Unknown"
	}
	return cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
}
