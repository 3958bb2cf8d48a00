// Package webhook receives platform event deliveries over HTTP and hands the
// decoded envelopes to the dispatcher.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/flint-bot/flint/dispatch"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body, keyed with the subscription secret.
const SignatureHeader = "X-Flint-Signature"

const maxBodyBytes = 1 << 20

type Handler struct {
	secret string
	logger *slog.Logger
	handle func(r *http.Request, env dispatch.Envelope)
}

// New builds the delivery endpoint. When secret is non-empty every request
// must carry a valid signature; with an empty secret the header is ignored.
func New(secret string, logger *slog.Logger, handle func(r *http.Request, env dispatch.Envelope)) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{secret: secret, logger: logger, handle: handle}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if h.secret != "" && !Verify(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn("webhook_signature_rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	env, err := dispatch.DecodeEnvelope(body)
	if err != nil {
		h.logger.Debug("webhook_envelope_rejected", "error", err.Error())
		http.Error(w, "bad envelope", http.StatusBadRequest)
		return
	}
	// Ack before the handlers run; the platform retries slow deliveries.
	w.WriteHeader(http.StatusOK)
	h.handle(r, env)
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret, in constant
// time.
func Verify(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}
