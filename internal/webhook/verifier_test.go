package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mreyes-dev/payflow/internal/domain"
)

const testSigningSecret = "whsec_test_secret"

func signBody(t *testing.T, ts int64, body, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := `{"id":"evt_1","type":"payment_intent.succeeded"}`

	tests := []struct {
		name    string
		header  func(t *testing.T) string
		wantErr error
	}{
		{
			name: "valid signature",
			header: func(t *testing.T) string {
				return fmt.Sprintf("t=%d,v1=%s", now.Unix(), signBody(t, now.Unix(), body, testSigningSecret))
			},
		},
		{
			name: "tampered body",
			header: func(t *testing.T) string {
				return fmt.Sprintf("t=%d,v1=%s", now.Unix(), signBody(t, now.Unix(), `{"id":"evt_2"}`, testSigningSecret))
			},
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name: "wrong secret",
			header: func(t *testing.T) string {
				return fmt.Sprintf("t=%d,v1=%s", now.Unix(), signBody(t, now.Unix(), body, "whsec_other"))
			},
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name:    "empty header",
			header:  func(*testing.T) string { return "" },
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name:    "header without signature",
			header:  func(*testing.T) string { return fmt.Sprintf("t=%d", now.Unix()) },
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name:    "header without timestamp",
			header:  func(t *testing.T) string { return "v1=" + signBody(t, now.Unix(), body, testSigningSecret) },
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name:    "garbage timestamp",
			header:  func(t *testing.T) string { return "t=soon,v1=" + signBody(t, now.Unix(), body, testSigningSecret) },
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name:    "non-hex signature",
			header:  func(*testing.T) string { return fmt.Sprintf("t=%d,v1=zzzz", now.Unix()) },
			wantErr: domain.ErrSignatureInvalid,
		},
		{
			name: "second v1 candidate matches",
			header: func(t *testing.T) string {
				return fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", now.Unix(), signBody(t, now.Unix(), body, testSigningSecret))
			},
		},
		{
			name: "signed twenty minutes ago",
			header: func(t *testing.T) string {
				ts := now.Add(-20 * time.Minute).Unix()
				return fmt.Sprintf("t=%d,v1=%s", ts, signBody(t, ts, body, testSigningSecret))
			},
			wantErr: domain.ErrSignatureStale,
		},
		{
			name: "signed in the future beyond tolerance",
			header: func(t *testing.T) string {
				ts := now.Add(20 * time.Minute).Unix()
				return fmt.Sprintf("t=%d,v1=%s", ts, signBody(t, ts, body, testSigningSecret))
			},
			wantErr: domain.ErrSignatureStale,
		},
		{
			name: "forged timestamp reads invalid not stale",
			header: func(t *testing.T) string {
				ts := now.Add(-20 * time.Minute).Unix()
				return fmt.Sprintf("t=%d,v1=%s", ts, signBody(t, now.Unix(), body, testSigningSecret))
			},
			wantErr: domain.ErrSignatureInvalid,
		},
	}

	v := NewVerifier(testSigningSecret, 5*time.Minute)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Verify([]byte(body), tc.header(t), now)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestVerifyToleranceBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := `{"id":"evt_1"}`
	v := NewVerifier(testSigningSecret, 5*time.Minute)

	// Exactly at the tolerance edge is still fresh.
	ts := now.Add(-5 * time.Minute).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signBody(t, ts, body, testSigningSecret))
	assert.NoError(t, v.Verify([]byte(body), header, now))

	ts = now.Add(-5*time.Minute - time.Second).Unix()
	header = fmt.Sprintf("t=%d,v1=%s", ts, signBody(t, ts, body, testSigningSecret))
	assert.ErrorIs(t, v.Verify([]byte(body), header, now), domain.ErrSignatureStale)
}

func TestVerifyUsesRawBytes(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(testSigningSecret, 5*time.Minute)

	// Semantically equal JSON with different whitespace must not verify
	// against the original signature.
	original := `{"id":"evt_1","type":"payment_intent.succeeded"}`
	reserialized := `{"id": "evt_1", "type": "payment_intent.succeeded"}`
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), signBody(t, now.Unix(), original, testSigningSecret))

	assert.NoError(t, v.Verify([]byte(original), header, now))
	assert.ErrorIs(t, v.Verify([]byte(reserialized), header, now), domain.ErrSignatureInvalid)
}
