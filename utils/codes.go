package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/gosimple/unidecode"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ASCIIAlnum transliterates s to ASCII and keeps letters and digits only,
// so "Zoë Łukasz" becomes "ZoeLukasz".
func ASCIIAlnum(s string) string {
	var b strings.Builder
	for _, r := range unidecode.Unidecode(s) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ReferralCodePrefix is the upper-cased first two letters of first and last name
func ReferralCodePrefix(firstName, lastName string) string {
	return strings.ToUpper(firstN(ASCIIAlnum(firstName), 2) + firstN(ASCIIAlnum(lastName), 2))
}

// RandomCode returns n random upper-case alphanumerics
func RandomCode(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out)
}
