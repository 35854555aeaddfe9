package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RecoveryChannel carries password recovery requests.
const RecoveryChannel = "account.recovery"

// RecoveryRequested is published when a user asks for a password reset.
// Link already contains the user ID and the plain secret.
type RecoveryRequested struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PublishRecovery encodes and publishes a recovery event.
func (m *MQ) PublishRecovery(ctx context.Context, event RecoveryRequested) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return m.Publish(ctx, RecoveryChannel, data, map[string]string{"type": RecoveryChannel})
}

// DecodeRecovery parses a recovery event from a delivered message.
func DecodeRecovery(msg Message) (RecoveryRequested, error) {
	var event RecoveryRequested
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return RecoveryRequested{}, fmt.Errorf("decode recovery event %s: %w", msg.ID, err)
	}
	return event, nil
}
