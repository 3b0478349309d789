package rushtpl

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// toTime accepts time values, common date strings and Unix seconds.
func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		s := fastTrim(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(n, 0).UTC(), true
		}
		return time.Time{}, false
	}
	if isNumeric(v) {
		f, _ := toNumber(v)
		return time.Unix(int64(f), 0).UTC(), true
	}
	return time.Time{}, false
}

// dateTokens are matched longest first at each position.
var dateTokens = []string{"YYYY", "MMMM", "MMM", "YY", "MM", "DD", "HH", "mm", "ss"}

// formatDate expands YYYY YY MMMM MMM MM DD HH mm ss; other characters are copied.
func formatDate(t time.Time, layout string) string {
	var b strings.Builder
	b.Grow(len(layout) + 8)
	for i := 0; i < len(layout); {
		tok := ""
		for _, candidate := range dateTokens {
			if strings.HasPrefix(layout[i:], candidate) {
				tok = candidate
				break
			}
		}
		switch tok {
		case "YYYY":
			fmt.Fprintf(&b, "%04d", t.Year())
		case "YY":
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case "MMMM":
			b.WriteString(t.Month().String())
		case "MMM":
			b.WriteString(t.Month().String()[:3])
		case "MM":
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case "DD":
			fmt.Fprintf(&b, "%02d", t.Day())
		case "HH":
			fmt.Fprintf(&b, "%02d", t.Hour())
		case "mm":
			fmt.Fprintf(&b, "%02d", t.Minute())
		case "ss":
			fmt.Fprintf(&b, "%02d", t.Second())
		default:
			b.WriteByte(layout[i])
			i++
			continue
		}
		i += len(tok)
	}
	return b.String()
}

func formatDateHelper(_ Context, args ...any) (any, error) {
	t, ok := toTime(arg(args, 0))
	if !ok {
		return "", fmt.Errorf("formatDate: %v is not a date", arg(args, 0))
	}
	return formatDate(t, argString(args, 1, "YYYY-MM-DD")), nil
}

func (b *builtins) timeAgoHelper(_ Context, args ...any) (any, error) {
	t, ok := toTime(arg(args, 0))
	if !ok {
		return "", fmt.Errorf("timeAgo: %v is not a date", arg(args, 0))
	}
	return timeAgo(b.now().Sub(t)), nil
}

// timeAgo describes an elapsed duration. Months are 30 days and years 365.
func timeAgo(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return "just now"
	case secs < 3600:
		return plural(secs/60, "minute")
	case secs < 86400:
		return plural(secs/3600, "hour")
	}
	days := secs / 86400
	switch {
	case days < 30:
		return plural(days, "day")
	case days < 365:
		return plural(days/30, "month")
	}
	return plural(days/365, "year")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s ago"
}

func (b *builtins) nowHelper(_ Context, _ ...any) (any, error) {
	return b.now(), nil
}
