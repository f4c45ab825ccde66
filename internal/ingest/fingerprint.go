package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint derives the content hash for a listing observation. Only the
// tracked fields participate: external id, price and title. Changes to any
// other field deliberately leave the fingerprint unchanged.
func Fingerprint(externalID string, price int64, title string) string {
	payload, _ := json.Marshal(struct {
		ID    string `json:"id"`
		Price int64  `json:"price"`
		Title string `json:"title"`
	}{externalID, price, title})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
