// Package token builds and verifies the tamper-evident strings embedded in
// rendered documents. A token is a fixed-shape JSON payload carrying a
// truncated SHA-256 fingerprint of its own canonical serialization.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// DefaultTTLDays is the validity window applied when none is configured.
const DefaultTTLDays = 3

const dateLayout = "2006-01-02"

// Item is one line of the token payload. Field order is part of the wire
// contract: the canonical bytes that get hashed depend on it.
type Item struct {
	ItemID     int64  `json:"itemId"`
	CatalogRef *int64 `json:"catalogRef"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
}

// payload is the hashed portion of a token. The struct shape is fixed so
// canonical serialization is unambiguous; never build this from a map.
type payload struct {
	AggregateID int64  `json:"aggregate_id"`
	ExpiresOn   string `json:"expires_on"`
	Items       []Item `json:"items"`
}

// signed is the full wire shape. The embedded payload's fields marshal
// first, keeping hash as the trailing field.
type signed struct {
	payload
	Hash string `json:"hash"`
}

// Codec issues and checks tokens. The zero value is not usable; construct
// with NewCodec.
type Codec struct {
	ttlDays int
	now     func() time.Time
}

func NewCodec(ttlDays int) *Codec {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	return &Codec{ttlDays: ttlDays, now: time.Now}
}

// fingerprint is the first 16 hex characters of the SHA-256 digest. The
// 64-bit truncation keeps the token compact enough for low-capacity portable
// codes; it is tamper evidence for display, not a non-repudiation signature.
func fingerprint(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16]
}

// Build serializes the items into a token string for the given aggregate.
// Items must be passed in entry order.
func (c *Codec) Build(aggregateID int64, items []Item) (string, error) {
	p := payload{
		AggregateID: aggregateID,
		ExpiresOn:   c.now().AddDate(0, 0, c.ttlDays).Format(dateLayout),
		Items:       items,
	}
	canonical, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(signed{payload: p, Hash: fingerprint(canonical)})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether the token is intact and unexpired. It never returns
// an error: malformed input, a missing or mismatched fingerprint, and an
// elapsed expiry date all yield false. Fields the issuer never wrote are
// rejected outright; silently dropping them would let an altered byte string
// re-serialize back to the signed canonical form.
func (c *Codec) Verify(token string) bool {
	dec := json.NewDecoder(strings.NewReader(token))
	dec.DisallowUnknownFields()
	var s signed
	if err := dec.Decode(&s); err != nil {
		return false
	}
	if dec.More() {
		return false
	}
	if s.Hash == "" {
		return false
	}

	canonical, err := json.Marshal(s.payload)
	if err != nil {
		return false
	}
	want := fingerprint(canonical)
	if subtle.ConstantTimeCompare([]byte(want), []byte(s.Hash)) != 1 {
		return false
	}

	expires, err := time.Parse(dateLayout, s.ExpiresOn)
	if err != nil {
		return false
	}
	// Today is the clock's calendar date, derived the same way Build stamps
	// the expiry, so the comparison cannot drift across a zone's midnight.
	today, err := time.Parse(dateLayout, c.now().Format(dateLayout))
	if err != nil {
		return false
	}
	return !today.After(expires)
}
