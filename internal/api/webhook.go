package api

import (
	"io"
	"log"
	"net/http"

	"github.com/leafpress/go-bookstore/internal/payment"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// HandlePaymentWebhook verifies the provider signature over the raw body and
// acknowledges. Events are logged only; order state is driven by the
// synchronous checkout path, not by webhook delivery.
func HandlePaymentWebhook(webhookSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			respondError(w, http.StatusBadRequest, "unable to read body")
			return
		}

		signature := r.Header.Get("X-Payment-Signature")
		if !payment.VerifyWebhookSignature(body, signature, webhookSecret) {
			respondError(w, http.StatusBadRequest, "invalid signature")
			return
		}

		log.Printf("Payment webhook received (%d bytes)", len(body))
		w.WriteHeader(http.StatusOK)
	}
}
