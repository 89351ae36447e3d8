package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/homecal/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Message is one notification fanned out to a set of device tokens.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Tag   string            `json:"tag,omitempty"`
}

// SendResponse is the outcome for a single token of a multicast.
type SendResponse struct {
	Token string
	Err   error
}

// BatchResponse collects per-token outcomes of a multicast.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Responses    []SendResponse
}

// ExpiredTokens lists tokens the push service reported as gone.
func (b *BatchResponse) ExpiredTokens() []string {
	var out []string
	for _, r := range b.Responses {
		if errors.Is(r.Err, ErrExpired) {
			out = append(out, r.Token)
		}
	}
	return out
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
}

// Service sends Web Push notifications.
type Service struct {
	cfg    Config
	client *http.Client
}

// NewService creates a push service. A nil client uses http.DefaultClient.
func NewService(cfg Config, client *http.Client) *Service {
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@homecal.app"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 86400
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{cfg: cfg, client: client}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// SendMulticast sends msg to every token, one request per token. A failure
// for one token does not stop delivery to the others; per-token errors are
// reported in the response. The returned error is set only when nothing
// could be attempted.
func (s *Service) SendMulticast(ctx context.Context, tokens []model.DeviceToken, msg Message) (*BatchResponse, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	resp := &BatchResponse{Responses: make([]SendResponse, 0, len(tokens))}
	for _, tok := range tokens {
		err := s.send(ctx, tok, data)
		if err != nil {
			resp.FailureCount++
		} else {
			resp.SuccessCount++
		}
		resp.Responses = append(resp.Responses, SendResponse{Token: tok.Token, Err: err})
	}
	return resp, nil
}

func (s *Service) send(ctx context.Context, tok model.DeviceToken, data []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: tok.Token,
		Keys: webpush.Keys{
			P256dh: tok.P256dhKey,
			Auth:   tok.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		Subscriber:      s.cfg.Subscriber,
		TTL:             s.cfg.TTL,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	return publicKey, privateKey, nil
}
