package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/homecal/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// testToken builds a device token with real subscription keys pointing at endpoint.
func testToken(t *testing.T, userID, endpoint string) model.DeviceToken {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate subscription key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return model.DeviceToken{
		UserID:    userID,
		Token:     endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestSendMulticast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusCreated)
		case "/gone":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	svc := NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv}, srv.Client())

	tokens := []model.DeviceToken{
		testToken(t, "u1", srv.URL+"/ok"),
		testToken(t, "u2", srv.URL+"/gone"),
		testToken(t, "u3", srv.URL+"/broken"),
	}

	resp, err := svc.SendMulticast(context.Background(), tokens, Message{Title: "Reminder", Body: "hi"})
	if err != nil {
		t.Fatalf("send multicast: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
	if resp.SuccessCount != 1 || resp.FailureCount != 2 {
		t.Errorf("success/failure = %d/%d, want 1/2", resp.SuccessCount, resp.FailureCount)
	}
	if resp.Responses[0].Err != nil {
		t.Errorf("ok token error = %v", resp.Responses[0].Err)
	}
	if !errors.Is(resp.Responses[1].Err, ErrExpired) {
		t.Errorf("gone token error = %v, want ErrExpired", resp.Responses[1].Err)
	}
	if resp.Responses[2].Err == nil || errors.Is(resp.Responses[2].Err, ErrExpired) {
		t.Errorf("broken token error = %v, want non-expiry failure", resp.Responses[2].Err)
	}

	expired := resp.ExpiredTokens()
	if len(expired) != 1 || expired[0] != srv.URL+"/gone" {
		t.Errorf("expired = %v, want [%s/gone]", expired, srv.URL)
	}
}

func TestSendMulticastNoTokens(t *testing.T) {
	svc := NewService(Config{}, nil)
	resp, err := svc.SendMulticast(context.Background(), nil, Message{Title: "x"})
	if err != nil {
		t.Fatalf("send multicast: %v", err)
	}
	if resp.SuccessCount != 0 || resp.FailureCount != 0 || len(resp.Responses) != 0 {
		t.Errorf("resp = %+v, want empty", resp)
	}
}
