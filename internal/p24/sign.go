// Package p24 implements the Przelewy24 REST transaction protocol:
// signed registration, server-to-server verification and connectivity checks.
package p24

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Field order and compact encoding are part of the provider's signature
// contract; do not reorder these structs.
type registerSignPayload struct {
	SessionID  string `json:"sessionId"`
	MerchantID int    `json:"merchantId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	CRC        string `json:"crc"`
}

type verifySignPayload struct {
	SessionID string `json:"sessionId"`
	OrderID   int64  `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	CRC       string `json:"crc"`
}

// RegisterSign signs a transaction registration request.
func RegisterSign(sessionID string, merchantID int, amount int64, currency string, crc string) (string, error) {
	return sign(registerSignPayload{
		SessionID:  sessionID,
		MerchantID: merchantID,
		Amount:     amount,
		Currency:   currency,
		CRC:        crc,
	})
}

// VerifySign signs a transaction verification request. The field set differs
// from RegisterSign: orderId replaces merchantId.
func VerifySign(sessionID string, orderID int64, amount int64, currency string, crc string) (string, error) {
	return sign(verifySignPayload{
		SessionID: sessionID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  currency,
		CRC:       crc,
	})
}

func sign(payload any) (string, error) {
	encoded, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha512.Sum384(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON matches JSON.stringify output: no whitespace, no HTML escaping.
func canonicalJSON(payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode signature payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
