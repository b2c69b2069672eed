package core

import (
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DecodeTokenExpiry reads the exp claim out of an access token without
// verifying the issuer signature; the token is trusted because it arrived
// over the authenticated channel. The boolean result is a first-class
// outcome, not an error: false means "undecodable, refresh immediately".
func DecodeTokenExpiry(token string) (time.Time, bool) {
	if strings.TrimSpace(token) == "" {
		return time.Time{}, false
	}
	claims := jwtv5.MapClaims{}
	if _, _, err := jwtv5.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time.UTC(), true
}

// NextRefreshDelay computes the sleep until the next proactive refresh:
// max(0, expiry - buffer - now). An undecodable or zero expiry schedules an
// immediate refresh.
func NextRefreshDelay(expiry time.Time, decodable bool, buffer time.Duration, now time.Time) time.Duration {
	if !decodable || expiry.IsZero() {
		return 0
	}
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	delay := expiry.UTC().Add(-buffer).Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}
