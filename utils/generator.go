package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const receiptCodeLength = 6
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReceiptNumber returns a human-readable receipt code like "ZM-7K2Q9X".
func GenerateReceiptNumber() string {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	b := make([]byte, receiptCodeLength)
	for i := range b {
		b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
	}
	return "ZM-" + string(b)
}

// GenerateOrderReceipt builds the gateway order receipt string from shortened
// session/user ids plus the trailing digits of the current timestamp.
func GenerateOrderReceipt(sessionID, userID uuid.UUID) string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	if len(timestamp) > 8 {
		timestamp = timestamp[len(timestamp)-8:]
	}
	return fmt.Sprintf("zoom_%s_%s_%s", sessionID.String()[:8], userID.String()[:8], timestamp)
}
