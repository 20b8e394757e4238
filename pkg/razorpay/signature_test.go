package razorpay

import (
	"testing"

	"github.com/razorpay/razorpay-go/utils"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)
	sig := Sign(body, "whsec")

	if !VerifySignature(body, sig, "whsec") {
		t.Fatal("expected valid signature to verify")
	}
	if !utils.VerifyWebhookSignature(string(body), sig, "whsec") {
		t.Fatal("expected gateway sdk to agree with our signature")
	}

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-3] = 'X'
	if VerifySignature(tampered, sig, "whsec") {
		t.Fatal("tampered body must not verify")
	}
	if VerifySignature(body, sig, "other") {
		t.Fatal("wrong secret must not verify")
	}
	if VerifySignature(body, "", "whsec") {
		t.Fatal("missing signature must not verify")
	}
	if VerifySignature(body, sig, "") {
		t.Fatal("missing secret must not verify")
	}
	if VerifySignature(body, "zz"+sig[2:], "whsec") {
		t.Fatal("altered signature must not verify")
	}
}

func TestVerifySignatureUsesRawBytes(t *testing.T) {
	compact := []byte(`{"a":1}`)
	spaced := []byte(`{ "a": 1 }`)
	sig := Sign(compact, "whsec")
	if VerifySignature(spaced, sig, "whsec") {
		t.Fatal("re-encoded body must not verify")
	}
}
