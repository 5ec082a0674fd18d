package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is how far an event timestamp may drift from now before
// verification fails closed.
const DefaultTolerance = 600 * time.Second

// VerificationError covers every reason an inbound webhook is rejected at
// the boundary: bad signature, stale timestamp, malformed header. Rejected
// requests must have no side effects.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return "webhook verification failed: " + e.Reason
}

// VerifySignature checks the provider signature header against the exact
// raw request bytes. The header carries a unix timestamp and one or more
// HMAC-SHA256 signatures of "<timestamp>.<payload>":
//
//	Stripe-Signature: t=1492774577,v1=5257a86...,v1=...
//
// now is injected so the tolerance boundary is testable.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return &VerificationError{Reason: "signing secret is not configured"}
	}
	if strings.TrimSpace(header) == "" {
		return &VerificationError{Reason: "missing signature header"}
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	drift := now.Sub(time.Unix(timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return &VerificationError{Reason: fmt.Sprintf("timestamp outside tolerance (%s)", tolerance)}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return nil
		}
	}
	return &VerificationError{Reason: "no matching signature"}
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64 = -1
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, &VerificationError{Reason: "malformed timestamp in signature header"}
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp < 0 {
		return 0, nil, &VerificationError{Reason: "signature header missing timestamp"}
	}
	if len(signatures) == 0 {
		return 0, nil, &VerificationError{Reason: "signature header missing v1 signature"}
	}
	return timestamp, signatures, nil
}
