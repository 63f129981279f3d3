package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferralCodePrefix(t *testing.T) {
	assert.Equal(t, "ADLO", ReferralCodePrefix("Ada", "Lovelace"))
	assert.Equal(t, "ZOLU", ReferralCodePrefix("Zoë", "Łukasz"))
	assert.Equal(t, "JO", ReferralCodePrefix("Jo", ""))
	assert.Equal(t, "AOOB", ReferralCodePrefix("A-O", "O'Brien"))
	assert.Equal(t, "", ReferralCodePrefix("", ""))
}

func TestASCIIAlnum(t *testing.T) {
	assert.Equal(t, "ZoeLukasz", ASCIIAlnum("Zoë Łukasz"))
	assert.Equal(t, "Renee2", ASCIIAlnum("Renée #2!"))
}

func TestRandomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := RandomCode(6)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestR2ConfigEnabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.False(t, R2Config{AccountID: "a", AccessKeyID: "k", AccessKeySecret: "s"}.Enabled())
	assert.True(t, R2Config{AccountID: "a", AccessKeyID: "k", AccessKeySecret: "s", Bucket: "b"}.Enabled())
}
