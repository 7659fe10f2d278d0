package webapi

import (
	"strconv"
	"strings"
)

// parseASN parses strings like "AS15169 Google LLC" or "AS15169" and
// returns the AS number and the owner. The ok result is false when the
// string does not start with a valid AS number.
func parseASN(value string) (asn uint, owner string, ok bool) {
	value = strings.TrimSpace(value)
	if len(value) < 3 || !strings.EqualFold(value[:2], "AS") {
		return 0, "", false
	}
	number, owner, _ := strings.Cut(value[2:], " ")
	parsed, err := strconv.ParseUint(number, 10, 32)
	if err != nil {
		return 0, "", false
	}
	return uint(parsed), strings.TrimSpace(owner), true
}
