package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	config "github.com/rishabh2304/liveclass_backend/configs"
)

const razorpayAPIBase = "https://api.razorpay.com/v1"

type RazorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateRazorpayOrder creates a gateway order for the given amount (major
// units; converted to paise here) and returns the order handle the client
// completes checkout against.
func CreateRazorpayOrder(amount float64, currency, receipt string, notes map[string]string) (*RazorpayOrder, error) {
	keyID := config.Config("RAZORPAY_KEY_ID")
	keySecret := config.Config("RAZORPAY_KEY_SECRET")

	payload := map[string]interface{}{
		"amount":   int64(math.Round(amount * 100)),
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/orders", razorpayAPIBase), bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(keyID, keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create razorpay order: %s", string(respBody))
	}

	var order RazorpayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, err
	}
	return &order, nil
}

// VerifyRazorpaySignature recomputes the checkout signature over
// "<orderID>|<paymentID>" with the shared key secret and compares it to the
// one the client submitted. Runs locally, no gateway round trip.
func VerifyRazorpaySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(config.Config("RAZORPAY_KEY_SECRET")))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
