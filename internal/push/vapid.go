package push

import (
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// VAPIDKeys is an application server key pair, both halves base64url encoded.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
}

// GenerateVAPIDKeys creates a fresh P-256 key pair.
func GenerateVAPIDKeys() (VAPIDKeys, error) {
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return VAPIDKeys{}, fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	return VAPIDKeys{PublicKey: pub, PrivateKey: priv}, nil
}
