package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// UpdateKey identifies a Telegram update. Redeliveries reuse the same update_id.
func UpdateKey(updateID int) string {
	return "update:" + strconv.Itoa(updateID)
}

// GenerateKey derives a key of the form "<kind>:<hash>" for updates that carry no
// update_id. The same kind and parts always produce the same key.
func GenerateKey(kind string, parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v\x1f", part)
	}

	return kind + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}
