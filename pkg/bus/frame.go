package bus

import (
	"encoding/json"
	"fmt"
)

// Reserved frames, comment-style: no event name and no id, so clients
// never confuse them with real events.
const (
	// FrameConnected is sent once when a stream opens, letting clients
	// detect a fresh connection.
	FrameConnected = ": connected\n\n"

	// FrameHeartbeat is sent periodically to keep long-lived connections
	// alive through idle proxies.
	FrameHeartbeat = ": heartbeat\n\n"
)

// EncodeFrame serializes a delivery into a push-transport frame:
//
//	id: <n>
//	event: <issues|telemetry|activity>
//	data: <json>
//	<blank line>
//
// The explicit id lets a reconnecting client resume from the last frame
// it saw.
func EncodeFrame(d Delivery) ([]byte, error) {
	data, err := json.Marshal(d.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame payload: %w", err)
	}

	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", d.ID, d.Type, data)), nil
}
