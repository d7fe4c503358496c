package token

import (
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var issuedAt = time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

func testCodec() *Codec {
	c := NewCodec(3)
	c.now = fixedClock(issuedAt)
	return c
}

func testItems() []Item {
	ref := int64(12)
	return []Item{
		{ItemID: 1, CatalogRef: &ref, Name: "Paracetamol", Qty: 2},
		{ItemID: 2, CatalogRef: nil, Name: "CBC", Qty: 1},
	}
}

func TestBuildVerifyRoundTrip(t *testing.T) {
	c := testCodec()
	tok, err := c.Build(7, testItems())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !c.Verify(tok) {
		t.Errorf("freshly built token must verify: %s", tok)
	}
}

func TestTokenShape(t *testing.T) {
	c := testCodec()
	tok, err := c.Build(7, testItems())
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{`"aggregate_id":7`, `"expires_on":"2026-03-04"`, `"itemId":1`, `"catalogRef":12`, `"catalogRef":null`, `"qty":2`} {
		if !strings.Contains(tok, key) {
			t.Errorf("token missing %s: %s", key, tok)
		}
	}

	// The hash is the trailing field and is 16 lowercase hex chars.
	idx := strings.LastIndex(tok, `"hash":"`)
	if idx == -1 || !strings.HasSuffix(tok, `"}`) {
		t.Fatalf("hash not trailing: %s", tok)
	}
	hash := tok[idx+len(`"hash":"`) : len(tok)-2]
	if len(hash) != 16 {
		t.Errorf("fingerprint length %d, want 16", len(hash))
	}
	if hash != strings.ToLower(hash) {
		t.Errorf("fingerprint not lowercase: %s", hash)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	c := testCodec()
	tok, err := c.Build(7, testItems())
	if err != nil {
		t.Fatal(err)
	}

	// Flip the quantity inside the items portion.
	tampered := strings.Replace(tok, `"qty":2`, `"qty":9`, 1)
	if tampered == tok {
		t.Fatal("replacement did not apply")
	}
	if c.Verify(tampered) {
		t.Error("tampered token must not verify")
	}

	// Flip a single character of a name.
	tampered = strings.Replace(tok, "Paracetamol", "Xaracetamol", 1)
	if c.Verify(tampered) {
		t.Error("single-character flip must not verify")
	}
}

func TestVerifyRejectsInjectedFields(t *testing.T) {
	c := testCodec()
	tok, err := c.Build(7, testItems())
	if err != nil {
		t.Fatal(err)
	}

	// An extra field spliced in ahead of the hash leaves the signed fields
	// untouched; the token is still not one the issuer produced.
	injected := strings.Replace(tok, `"hash":`, `"note":"take 99 daily","hash":`, 1)
	if injected == tok {
		t.Fatal("replacement did not apply")
	}
	if c.Verify(injected) {
		t.Error("token with injected fields must not verify")
	}

	// Same for trailing bytes after the JSON value.
	if c.Verify(tok + "garbage") {
		t.Error("token with trailing data must not verify")
	}
}

func TestVerifyExpiry(t *testing.T) {
	c := testCodec()
	tok, err := c.Build(7, testItems())
	if err != nil {
		t.Fatal(err)
	}

	// Valid through the expiry date itself.
	c.now = fixedClock(issuedAt.AddDate(0, 0, 3))
	if !c.Verify(tok) {
		t.Error("token should still verify on its expiry date")
	}

	c.now = fixedClock(issuedAt.AddDate(0, 0, 4))
	if c.Verify(tok) {
		t.Error("token past expiry must not verify")
	}
}

func TestVerifyExpiryUsesClockDate(t *testing.T) {
	c := testCodec()
	tok, err := c.Build(7, testItems()) // expires 2026-03-04
	if err != nil {
		t.Fatal(err)
	}

	// Late evening on the expiry date in a western zone is already the next
	// day in UTC; the clock's own date is what counts.
	west := time.FixedZone("UTC-10", -10*3600)
	c.now = fixedClock(time.Date(2026, 3, 4, 20, 0, 0, 0, west))
	if !c.Verify(tok) {
		t.Error("token should verify while the clock's date is the expiry date")
	}

	// Just past midnight in an eastern zone is past expiry even though the
	// UTC date still reads 2026-03-04.
	east := time.FixedZone("UTC+10", 10*3600)
	c.now = fixedClock(time.Date(2026, 3, 5, 0, 30, 0, 0, east))
	if c.Verify(tok) {
		t.Error("token must not verify once the clock's date passes expiry")
	}
}

func TestVerifyMalformed(t *testing.T) {
	c := testCodec()
	cases := map[string]string{
		"not json":        "qr-code-garbage",
		"empty":           "",
		"wrong type":      `{"aggregate_id":"seven","hash":"0123456789abcdef"}`,
		"missing hash":    `{"aggregate_id":7,"expires_on":"2026-03-04","items":[]}`,
		"bad expiry":      `{"aggregate_id":7,"expires_on":"someday","items":[],"hash":"0123456789abcdef"}`,
		"truncated":       `{"aggregate_id":7,"expires_on":"2026-03-0`,
		"hash wrong size": `{"aggregate_id":7,"expires_on":"2026-03-04","items":[],"hash":"abc"}`,
	}
	for name, tok := range cases {
		if c.Verify(tok) {
			t.Errorf("%s: must not verify: %s", name, tok)
		}
	}
}

func TestNewCodecDefaultTTL(t *testing.T) {
	c := NewCodec(0)
	if c.ttlDays != DefaultTTLDays {
		t.Errorf("ttl: got %d, want %d", c.ttlDays, DefaultTTLDays)
	}
}
