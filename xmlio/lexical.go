package xmlio

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// FormatBool returns the lexical form of a xsd:boolean.
func FormatBool(value bool) string {
	return strconv.FormatBool(value)
}

// ParseBool parses a xsd:boolean which accepts 1 and 0 as well.
func ParseBool(text string) (bool, error) {
	switch strings.TrimSpace(text) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, xerrors.Errorf("invalid boolean '%s'", text)
	}
}

// FormatFloat returns the lexical form of a xsd:float or xsd:double. The
// shortest representation that round-trips is used.
func FormatFloat(value float64, bitSize int) string {
	switch {
	case math.IsInf(value, 1):
		return "INF"
	case math.IsInf(value, -1):
		return "-INF"
	case math.IsNaN(value):
		return "NaN"
	default:
		return strconv.FormatFloat(value, 'G', -1, bitSize)
	}
}

// ParseFloat parses a xsd:float or xsd:double.
func ParseFloat(text string, bitSize int) (float64, error) {
	switch text = strings.TrimSpace(text); text {
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}

	value, err := strconv.ParseFloat(text, bitSize)
	if err != nil {
		return 0, xerrors.Errorf("invalid float '%s'", text)
	}

	return value, nil
}

// FormatTime returns the lexical form of a xsd:dateTime.
func FormatTime(value time.Time) string {
	return value.Format(time.RFC3339Nano)
}

// ParseTime parses a xsd:dateTime.
func ParseTime(text string) (time.Time, error) {
	value, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, xerrors.Errorf("invalid dateTime '%s'", text)
	}

	return value, nil
}

// FormatDuration returns the lexical form of a xsd:duration. Days are the
// largest unit as months and years do not have a fixed length.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	var b strings.Builder

	// The magnitude is kept unsigned so that the minimal duration does not
	// overflow.
	mag := uint64(d)
	if d < 0 {
		b.WriteByte('-')
		mag = uint64(-(d + 1)) + 1
	}

	b.WriteByte('P')

	day := uint64(24 * time.Hour)
	if days := mag / day; days > 0 {
		b.WriteString(strconv.FormatUint(days, 10))
		b.WriteByte('D')
		mag %= day
	}

	if mag == 0 {
		return b.String()
	}

	b.WriteByte('T')

	if hours := mag / uint64(time.Hour); hours > 0 {
		b.WriteString(strconv.FormatUint(hours, 10))
		b.WriteByte('H')
		mag %= uint64(time.Hour)
	}

	if minutes := mag / uint64(time.Minute); minutes > 0 {
		b.WriteString(strconv.FormatUint(minutes, 10))
		b.WriteByte('M')
		mag %= uint64(time.Minute)
	}

	if mag > 0 {
		secs := mag / uint64(time.Second)
		frac := mag % uint64(time.Second)

		b.WriteString(strconv.FormatUint(secs, 10))
		if frac > 0 {
			digits := strconv.FormatUint(frac+uint64(time.Second), 10)[1:]
			b.WriteByte('.')
			b.WriteString(strings.TrimRight(digits, "0"))
		}
		b.WriteByte('S')
	}

	return b.String()
}

// ParseDuration parses a xsd:duration. Durations expressed in years or months
// are rejected.
func ParseDuration(text string) (time.Duration, error) {
	s := strings.TrimSpace(text)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, xerrors.Errorf("invalid duration '%s'", text)
	}

	s = s[1:]

	var total time.Duration
	inTime := false
	seen := false

	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime || len(s) == 1 {
				return 0, xerrors.Errorf("invalid duration '%s'", text)
			}

			inTime = true
			s = s[1:]
			continue
		}

		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}

		if i == 0 || i == len(s) {
			return 0, xerrors.Errorf("invalid duration '%s'", text)
		}

		number := s[:i]
		unit := s[i]
		s = s[i+1:]

		var scale time.Duration

		switch {
		case unit == 'D' && !inTime:
			scale = 24 * time.Hour
		case unit == 'H' && inTime:
			scale = time.Hour
		case unit == 'M' && inTime:
			scale = time.Minute
		case unit == 'S' && inTime:
			scale = time.Second
		case unit == 'Y' || unit == 'M':
			return 0, xerrors.Errorf("duration '%s' has no fixed length", text)
		default:
			return 0, xerrors.Errorf("invalid duration '%s'", text)
		}

		if unit != 'S' && strings.Contains(number, ".") {
			return 0, xerrors.Errorf("invalid duration '%s'", text)
		}

		value, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, xerrors.Errorf("invalid duration '%s'", text)
		}

		if unit == 'S' {
			whole, frac := splitSeconds(number)
			total += time.Duration(whole)*time.Second + frac
		} else {
			total += time.Duration(value) * scale
		}

		seen = true
	}

	if !seen {
		return 0, xerrors.Errorf("invalid duration '%s'", text)
	}

	if negative {
		total = -total
	}

	return total, nil
}

// splitSeconds parses the seconds exactly, up to the nanosecond.
func splitSeconds(number string) (int64, time.Duration) {
	parts := strings.SplitN(number, ".", 2)

	whole, _ := strconv.ParseInt(parts[0], 10, 64)
	if len(parts) == 1 {
		return whole, 0
	}

	digits := parts[1]
	if len(digits) > 9 {
		digits = digits[:9]
	}

	digits += strings.Repeat("0", 9-len(digits))
	frac, _ := strconv.ParseInt(digits, 10, 64)

	return whole, time.Duration(frac)
}
