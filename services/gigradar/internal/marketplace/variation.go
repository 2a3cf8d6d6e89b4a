package marketplace

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tokenPrefix = "oauth2v2_"

// variationCandidates derives guesses from an expired token. They are
// validated with a GraphQL request before use and rarely succeed.
func variationCandidates(base, visitorID, traceID string, now time.Time) []string {
	body := strings.TrimPrefix(base, tokenPrefix)
	if len(body) != 32 {
		return nil
	}

	var out []string
	out = append(out, tokenPrefix+md5Hex(body+strconv.FormatInt(now.Unix(), 10)))
	if visitorID != "" {
		out = append(out, tokenPrefix+md5Hex(visitorID+body[16:]))
	}
	if traceID != "" {
		out = append(out, tokenPrefix+md5Hex(traceID+body[:16]))
	}
	if head, err := strconv.ParseUint(body[:8], 16, 32); err == nil {
		out = append(out, tokenPrefix+fmt.Sprintf("%08x", uint32(head)+1)+body[8:])
	}
	return out
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
