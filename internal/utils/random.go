package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

const defaultCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// RandomString returns an unguessable string of the given length drawn from
// charset. An empty charset falls back to alphanumerics.
func RandomString(length int, charset string) string {
	if charset == "" {
		charset = defaultCharset
	}
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic("utils: crypto/rand unavailable: " + err.Error())
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// DaysFromNow returns the current time shifted by d days. Negative values
// go into the past.
func DaysFromNow(d int) time.Time {
	return time.Now().Add(time.Duration(d) * 24 * time.Hour)
}
