package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader — заголовок, в котором провайдер передает подпись payload.
// Формат значения: "t=<unix>,v1=<hex hmac-sha256>".
const SignatureHeader = "Billing-Signature"

// Максимально допустимый возраст подписанного payload.
const signatureTolerance = 5 * time.Minute

// ErrInvalidSignature возвращается при любой проблеме с подписью webhook:
// неверный формат заголовка, несовпадение HMAC или слишком старый таймстемп.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature проверяет подпись сырого webhook-payload до какой-либо
// обработки события. Сравнение HMAC выполняется в константное время.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	var timestamp int64 = -1
	var signature string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			signature = value
		}
	}
	if timestamp < 0 || signature == "" {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrInvalidSignature
	}

	expected := ComputeSignature(payload, secret, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeSignature вычисляет hex HMAC-SHA256 от "<timestamp>.<payload>".
func ComputeSignature(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
