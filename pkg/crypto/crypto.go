// Package crypto holds the credential hashing used by the ops API and the
// MD5 MAC material of the OMA-DM transport integrity header.
package crypto

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// VerifyPassword verifies a password against a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MD5 returns the raw MD5 digest of data. The DM 1.1 HMAC scheme is fixed
// to MD5; this is protocol material, not a password store.
func MD5(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

// B64 renders bytes as standard base64 text.
func B64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// MessageMAC computes the DM response integrity MAC:
//
//	H(B64(H(username:password)) : nonce : B64(bodyDigest))
//
// where H is MD5, nonce is the raw (base64-decoded) next-nonce the device
// supplied, and bodyDigest is the MD5 of the encoded response body. The
// result is base64 text.
func MessageMAC(username, password string, nonce, bodyDigest []byte) string {
	inner := B64(MD5([]byte(username + ":" + password)))

	var buf bytes.Buffer
	buf.WriteString(inner)
	buf.WriteByte(':')
	buf.Write(nonce)
	buf.WriteByte(':')
	buf.WriteString(B64(bodyDigest))

	return B64(MD5(buf.Bytes()))
}
