package cloudapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	signAlgorithm = "TC3-HMAC-SHA256"
	contentType   = "application/json; charset=utf-8"
	signedHeaders = "content-type;host"
)

// authorization computes the TC3-HMAC-SHA256 Authorization header value for
// a JSON POST to host.
func authorization(secretID, secretKey, service, host string, payload []byte, ts time.Time) string {
	date := ts.UTC().Format("2006-01-02")

	canonical := "POST\n/\n\n" +
		"content-type:" + contentType + "\nhost:" + host + "\n\n" +
		signedHeaders + "\n" +
		sha256hex(payload)

	scope := date + "/" + service + "/tc3_request"
	stringToSign := signAlgorithm + "\n" +
		strconv.FormatInt(ts.Unix(), 10) + "\n" +
		scope + "\n" +
		sha256hex([]byte(canonical))

	key := hmacSHA256([]byte("TC3"+secretKey), date)
	key = hmacSHA256(key, service)
	key = hmacSHA256(key, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signAlgorithm, secretID, scope, signedHeaders, signature)
}

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}
