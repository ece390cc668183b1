package as2client

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// expandMessageID substitutes the $date.<pattern>$, $rand.<digits>$,
// $msg.sender.as2_id$ and $msg.receiver.as2_id$ tokens in format: spec.md §6.
func expandMessageID(format string, senderAS2ID, receiverAS2ID string, now time.Time) (string, error) {
	out := format
	out, err := substituteDate(out, now)
	if err != nil {
		return "", err
	}
	out, err = substituteRand(out)
	if err != nil {
		return "", err
	}
	out = strings.ReplaceAll(out, "$msg.sender.as2_id$", senderAS2ID)
	out = strings.ReplaceAll(out, "$msg.receiver.as2_id$", receiverAS2ID)
	return out, nil
}

func substituteDate(s string, now time.Time) (string, error) {
	for {
		start := strings.Index(s, "$date.")
		if start == -1 {
			return s, nil
		}
		end := strings.Index(s[start+len("$date."):], "$")
		if end == -1 {
			return "", fmt.Errorf("unterminated $date. token in message-id format")
		}
		pattern := s[start+len("$date.") : start+len("$date.")+end]
		layout := javaDateLayoutToGo(pattern)
		s = s[:start] + now.Format(layout) + s[start+len("$date.")+end+1:]
	}
}

func substituteRand(s string) (string, error) {
	for {
		start := strings.Index(s, "$rand.")
		if start == -1 {
			return s, nil
		}
		end := strings.Index(s[start+len("$rand."):], "$")
		if end == -1 {
			return "", fmt.Errorf("unterminated $rand. token in message-id format")
		}
		digits := s[start+len("$rand.") : start+len("$rand.")+end]
		value, err := randomDigits(len(digits))
		if err != nil {
			return "", err
		}
		s = s[:start] + value + s[start+len("$rand.")+end+1:]
	}
}

// randomDigits returns n random decimal digits, grounded on the token's own
// width (e.g. "1234" in the default format requests 4 digits).
func randomDigits(n int) (string, error) {
	if n <= 0 {
		n = 4
	}
	max := big.NewInt(1)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		max.Mul(max, ten)
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random message-id token: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v.Int64()), nil
}

// javaDateLayoutToGo maps the handful of SimpleDateFormat letters the
// default format uses onto Go's reference-time layout.
func javaDateLayoutToGo(pattern string) string {
	replacer := strings.NewReplacer(
		"ddMMyyyyHHmmssZ", "02012006150405Z0700",
		"yyyy", "2006",
		"MM", "01",
		"dd", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
		"Z", "Z0700",
	)
	return replacer.Replace(pattern)
}
