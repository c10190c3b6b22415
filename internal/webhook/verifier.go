package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/mreyes-dev/payflow/internal/domain"
)

// Verifier checks that a raw webhook body was signed by the processor.
// The header format is Stripe's: "t=<unix>,v1=<hex>[,v1=<hex>...]" where
// each v1 value is HMAC-SHA256(secret, "<t>.<body>"). Verification runs
// over the exact raw bytes; the body must never be re-serialized first.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance}
}

// Verify returns nil for a fresh, correctly signed body,
// domain.ErrSignatureStale for a correctly signed body outside the freshness
// window, and domain.ErrSignatureInvalid for everything else. The signature
// is checked before freshness so a forged timestamp cannot be distinguished
// from any other forgery.
func (v *Verifier) Verify(body []byte, sigHeader string, now time.Time) error {
	ts, candidates, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	matched := false
	for _, c := range candidates {
		sig, err := hex.DecodeString(c)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sig) {
			matched = true
		}
	}
	if !matched {
		return domain.ErrSignatureInvalid
	}

	signedAt := time.Unix(ts, 0)
	if d := now.Sub(signedAt); d > v.tolerance || d < -v.tolerance {
		return domain.ErrSignatureStale
	}
	return nil
}

func parseSignatureHeader(header string) (ts int64, candidates []string, err error) {
	if header == "" {
		return 0, nil, domain.ErrSignatureInvalid
	}

	sawTimestamp := false
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, domain.ErrSignatureInvalid
			}
			sawTimestamp = true
		case "v1":
			candidates = append(candidates, val)
		}
	}

	if !sawTimestamp || len(candidates) == 0 {
		return 0, nil, domain.ErrSignatureInvalid
	}
	return ts, candidates, nil
}
