package utils

import (
	"regexp"
	"strconv"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9.]`)

// SafeName returns "{epochMillis}-{name}" with every character outside
// [A-Za-z0-9.] replaced by "_".
func SafeName(original string, now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + unsafeNameChars.ReplaceAllString(original, "_")
}
