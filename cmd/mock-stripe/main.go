package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes-dev/payflow/internal/logging"
)

// Signs a webhook payload the way the processor does and posts it to a
// running API instance. Handy for exercising the webhook endpoint locally
// without real processor traffic.
func main() {
	logging.Init("mock-stripe", "info", os.Getenv("APP_ENV"))

	var (
		target    = flag.String("target", "http://localhost:8080/api/v1/webhooks/stripe", "webhook endpoint to post to")
		secret    = flag.String("secret", os.Getenv("STRIPE_WEBHOOK_SECRET"), "signing secret")
		eventType = flag.String("type", "payment_intent.succeeded", "event type to send")
		intentRef = flag.String("intent", "", "payment intent id to reference")
		skewS     = flag.Int("skew", 0, "seconds to backdate the signature timestamp")
	)
	flag.Parse()

	if *secret == "" {
		slog.Error("signing secret required (flag -secret or STRIPE_WEBHOOK_SECRET)")
		os.Exit(1)
	}
	if *intentRef == "" {
		slog.Error("payment intent id required (flag -intent)")
		os.Exit(1)
	}

	body := fmt.Sprintf(`{"id":"evt_%s","type":%q,"data":{"object":{"object":"payment_intent","id":%q}}}`,
		uuid.NewString(), *eventType, *intentRef)

	ts := time.Now().Add(-time.Duration(*skewS) * time.Second).Unix()
	mac := hmac.New(sha256.New, []byte(*secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	req, err := http.NewRequest(http.MethodPost, *target, bytes.NewReader([]byte(body)))
	if err != nil {
		slog.Error("failed to build request", "error", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("delivery failed", "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	slog.Info("delivery sent", "status", resp.StatusCode, "body", string(respBody))
}
