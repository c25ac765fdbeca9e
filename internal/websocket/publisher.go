package websocket

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publish pushes an event envelope into a room's Redis channel. The
// websocket process subscribes to these channels and re-broadcasts into
// its local hub, which is how the REST process reaches connected
// clients without holding connections itself.
func Publish(roomID, event string, payload interface{}) error {
	if roomID == "" {
		return fmt.Errorf("websocket publish: roomID required")
	}
	if redisClient == nil {
		return fmt.Errorf("websocket publish: redis client not initialised")
	}

	envelope, err := NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("websocket publish: build envelope: %w", err)
	}

	messageJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal envelope: %w", err)
	}

	if err := redisClient.Publish(context.Background(), roomID, string(messageJSON)).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}
