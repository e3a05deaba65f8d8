package auxdata

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

var strptimePatterns = map[byte]string{
	'Y': `\d{4}`,
	'y': `\d{2}`,
	'm': `\d{2}`,
	'd': `\d{2}`,
	'j': `\d{3}`,
	'H': `\d{2}`,
	'I': `\d{2}`,
	'M': `\d{2}`,
	'S': `\d{2}`,
	'f': `\d{1,9}`,
	'p': `(?:AM|PM|am|pm)`,
	'b': `[A-Za-z]{3}`,
	'B': `[A-Za-z]+`,
	'z': `(?:Z|[+-]\d{2}:?\d{2})`,
	'Z': `[A-Za-z]+`,
	'%': `%`,
}

// strptimeRegexp turns a strftime format into a pattern locating a matching timestamp in text
func strptimeRegexp(format string) (*regexp.Regexp, error) {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			sb.WriteString(regexp.QuoteMeta(format[i : i+1]))
			continue
		}
		i++
		if i == len(format) {
			return nil, fmt.Errorf("strptime format %q ends with a lone %%", format)
		}
		p, ok := strptimePatterns[format[i]]
		if !ok {
			return nil, fmt.Errorf("unsupported directive %%%c in strptime format %q", format[i], format)
		}
		sb.WriteString(p)
	}
	return regexp.Compile(sb.String())
}

// hasZone tells whether format carries a UTC offset or zone name
func hasZone(format string) bool {
	return strings.Contains(format, "%z") || strings.Contains(format, "%Z")
}

// ParseBegin finds the timestamp written with format in name.
// Zone-less timestamps are read as wall clock in tz, zoned ones are converted to tz.
// A nil tz leaves the parsed timestamp as is (UTC when zone-less).
func ParseBegin(name, format string, tz *time.Location) (time.Time, error) {
	re, err := strptimeRegexp(format)
	if err != nil {
		return time.Time{}, err
	}
	match := re.FindString(name)
	if match == "" {
		return time.Time{}, fmt.Errorf("%s does not contain a timestamp matching %q", name, format)
	}

	if tz != nil && !hasZone(format) {
		return timefmt.ParseInLocation(match, format, tz)
	}
	t, err := timefmt.Parse(match, format)
	if err != nil {
		return time.Time{}, err
	}
	if tz != nil {
		t = t.In(tz)
	}
	return t, nil
}

// localize reads a zone-less timestamp as wall clock in tz
func localize(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), tz)
}
