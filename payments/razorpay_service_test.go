package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyRazorpaySignature(t *testing.T) {
	t.Setenv("RAZORPAY_KEY_SECRET", "unit-test-secret")

	orderID := "order_MNq1vL8sKQ3bxZ"
	paymentID := "pay_MNq2H9gT41xwPa"

	mac := hmac.New(sha256.New, []byte("unit-test-secret"))
	mac.Write([]byte(orderID + "|" + paymentID))
	valid := hex.EncodeToString(mac.Sum(nil))

	if !VerifyRazorpaySignature(orderID, paymentID, valid) {
		t.Error("a correctly signed proof must verify")
	}
	if VerifyRazorpaySignature(orderID, paymentID, "0000") {
		t.Error("a forged signature must be rejected")
	}
	if VerifyRazorpaySignature(orderID, "pay_other", valid) {
		t.Error("a signature over different ids must be rejected")
	}
}
