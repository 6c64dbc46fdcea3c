package pdfextract

import (
	"regexp"
	"strconv"
	"time"
)

var pdfDatePattern = regexp.MustCompile(`^D:(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})([+-]\d{2})'(\d{2})`)

// parsePDFDate converts a PDF date string of the form
// "D:YYYYMMDDHHmmSS+HH'MM" to a UTC "YYYY-MM-DD HH:MM:SS" string. It
// reports false for any string not in that exact form (notably, PDF dates
// with no timezone offset, which this format leaves ambiguous).
func parsePDFDate(raw string) (string, bool) {
	m := pdfDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	year := atoi(m[1])
	month := atoi(m[2])
	day := atoi(m[3])
	hour := atoi(m[4])
	minute := atoi(m[5])
	second := atoi(m[6])
	tzHour := atoi(m[7])
	tzMinute := atoi(m[8])

	local := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	offset := time.Duration(tzHour) * time.Hour
	if m[7][0] == '-' {
		offset -= time.Duration(tzMinute) * time.Minute
	} else {
		offset += time.Duration(tzMinute) * time.Minute
	}
	utc := local.Add(-offset)
	return utc.Format("2006-01-02 15:04:05"), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
