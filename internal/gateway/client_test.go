package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testConfig(endpoint string) Config {
	return Config{
		PartnerCode: "GYMTEST",
		AccessKey:   "access",
		SecretKey:   "secret",
		Endpoint:    endpoint,
		RedirectURL: "https://gym.example/return",
		IPNURL:      "https://gym.example/notify",
		RequestType: "captureWallet",
	}
}

func TestVerifyNotification(t *testing.T) {
	c := NewClient(testConfig(""))
	extra, _ := EncodeExtraData(ExtraData{PackageID: "p1", MemberID: "m1"})
	n := &Notification{
		PartnerCode:  "GYMTEST",
		OrderID:      "ORDER_1",
		RequestID:    "REQ_1",
		Amount:       500000,
		OrderInfo:    "Gold package",
		OrderType:    "momo_wallet",
		TransID:      4088878653,
		ResultCode:   0,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1721720663942,
		ExtraData:    extra,
	}
	c.Sign(n)

	if !c.Verify(n) {
		t.Fatal("signed notification must verify")
	}

	tampered := *n
	tampered.Amount = 1
	if c.Verify(&tampered) {
		t.Fatal("tampered amount must not verify")
	}

	other := NewClient(Config{AccessKey: "access", SecretKey: "different"})
	if other.Verify(n) {
		t.Fatal("signature from another secret must not verify")
	}
}

func TestSignatureIsHexHMAC(t *testing.T) {
	// Known vector: HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	got := hmacHex("The quick brown fox jumps over the lazy dog", "key")
	want := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Fatalf("hmacHex = %s, want %s", got, want)
	}
}

func TestExtraDataRoundTrip(t *testing.T) {
	enc, err := EncodeExtraData(ExtraData{PackageID: "p", MemberID: "m"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d, err := DecodeExtraData(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.PackageID != "p" || d.MemberID != "m" {
		t.Fatalf("unexpected extra data: %+v", d)
	}

	for _, bad := range []string{"", "%%%not-base64", "bm90IGpzb24=", "eyJwYWNrYWdlSWQiOiJwIn0="} {
		if _, err := DecodeExtraData(bad); !errors.Is(err, ErrInvalidExtraData) {
			t.Errorf("DecodeExtraData(%q): want ErrInvalidExtraData, got %v", bad, err)
		}
	}
}

func TestCreatePayment(t *testing.T) {
	var received createRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(PaymentResponse{
			PartnerCode: received.PartnerCode,
			OrderID:     received.OrderID,
			RequestID:   received.RequestID,
			Amount:      received.Amount,
			ResultCode:  0,
			PayURL:      "https://pay.example/" + received.OrderID,
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	resp, err := c.CreatePayment(context.Background(), PaymentRequest{
		OrderID:   "ORDER_9",
		RequestID: "REQ_9",
		Amount:    250000,
		OrderInfo: "Silver package",
		ExtraData: "e30=",
	})
	if err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	if resp.PayURL != "https://pay.example/ORDER_9" {
		t.Fatalf("unexpected pay url %q", resp.PayURL)
	}

	wantSig := hmacHex(createRequestRaw("access", &received), "secret")
	if received.Signature != wantSig {
		t.Fatalf("request signature mismatch: got %s want %s", received.Signature, wantSig)
	}
	if received.IpnURL != "https://gym.example/notify" || received.PartnerCode != "GYMTEST" {
		t.Fatalf("config fields not sent: %+v", received)
	}
}

func TestCreatePaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PaymentResponse{ResultCode: 42, Message: "bad amount"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.CreatePayment(context.Background(), PaymentRequest{OrderID: "o", RequestID: "r", Amount: 1})
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("want ErrGatewayRejected, got %v", err)
	}
}
