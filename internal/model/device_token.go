package model

import "time"

// DeviceToken is a Web Push subscription registered by a user. Token holds the
// push endpoint and is the identity used for deduplication.
type DeviceToken struct {
	UserID     string    `json:"user_id"`
	Token      string    `json:"token"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
