// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Request signing headers.
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"

	signatureVersion = "v0"
)

var (
	// ErrStaleTimestamp means the request timestamp is missing, unparsable
	// or too far from now.
	ErrStaleTimestamp = errors.New("invalid timestamp")

	// ErrInvalidSignature means the signature does not match the body.
	ErrInvalidSignature = errors.New("signature mismatch")
)

// Sign computes the v0 signature of body sent at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signed request. The timestamp must be within
// maxAge of now in either direction.
func VerifySignature(secret, signature, timestamp string, body []byte, now time.Time, maxAge time.Duration) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrStaleTimestamp, timestamp)
	}
	// Compare in whole seconds so extreme values cannot overflow a Duration.
	limit := int64(maxAge / time.Second)
	if ts > now.Unix()+limit || ts < now.Unix()-limit {
		return fmt.Errorf("%w: %d is outside the %s window", ErrStaleTimestamp, ts, maxAge)
	}

	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
