// Package naming derives output file names for exported documents.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// UnknownDate is emitted when a publication date cannot be parsed.
const UnknownDate = "unknown-date"

// ReviewFileName is the fixed name of the review document.
const ReviewFileName = "Home.md"

var (
	isoPrefix   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	dottedDate  = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	longFormDay = regexp.MustCompile(`(\d{1,2})\s+([\p{L}]+)\.?,?\s+(\d{4})`)

	filenameReplacer = strings.NewReplacer(
		"/", "-",
		`\`, "-",
		"?", "-",
		"%", "-",
		"*", "-",
		":", "-",
		"|", "-",
		`"`, "-",
		"<", "-",
		">", "-",
	)
)

// months maps genitive month names to their two-digit numbers.
var months = map[string]string{
	"января":   "01",
	"февраля":  "02",
	"марта":    "03",
	"апреля":   "04",
	"мая":      "05",
	"июня":     "06",
	"июля":     "07",
	"августа":  "08",
	"сентября": "09",
	"октября":  "10",
	"ноября":   "11",
	"декабря":  "12",
}

// FormatDate normalizes a raw publication date to YYYY-MM-DD, or UnknownDate.
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownDate
	}
	if m := isoPrefix.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}
	if m := dottedDate.FindStringSubmatch(raw); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
	}
	for _, m := range longFormDay.FindAllStringSubmatch(raw, -1) {
		if month, ok := months[strings.ToLower(m[2])]; ok {
			return fmt.Sprintf("%s-%s-%s", m[3], month, pad2(m[1]))
		}
	}
	return UnknownDate
}

// IsMonthName reports whether word is one of the recognized month names.
func IsMonthName(word string) bool {
	_, ok := months[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// SanitizeFilename replaces characters that are unsafe in file names with '-'.
func SanitizeFilename(name string) string {
	return strings.TrimSpace(filenameReplacer.Replace(name))
}

// PostFileName builds "<date> - <title>.md" for a post.
func PostFileName(rawDate, title string) string {
	return fmt.Sprintf("%s - %s.md", FormatDate(rawDate), SanitizeFilename(title))
}

// WithSuffix inserts " (n)" before the extension of a post file name.
func WithSuffix(fileName string, n int) string {
	if n <= 1 {
		return fileName
	}
	base := strings.TrimSuffix(fileName, ".md")
	return fmt.Sprintf("%s (%d).md", base, n)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
