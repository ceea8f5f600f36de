package bus

import (
	"context"
	"io"
	"time"

	"github.com/0xmhha/bead-sync/pkg/logger"
)

// DefaultHeartbeatInterval is used when Stream is given a non-positive
// heartbeat interval.
const DefaultHeartbeatInterval = 30 * time.Second

// streamBuffer bounds how far a slow stream may fall behind before
// frames are dropped. Dropping protects the emitter: delivery into the
// buffer never blocks an Emit call.
const streamBuffer = 64

// flusher is implemented by transports that buffer writes.
type flusher interface {
	Flush()
}

// Stream forwards bus deliveries to w as push-transport frames until ctx
// is cancelled.
//
// It writes the connected frame first, then encoded event frames as they
// arrive, interleaved with heartbeat frames. Cancellation (or a write
// failure, which means the client went away) runs cleanup exactly once:
// the subscription is removed and the heartbeat timer stopped. A client
// disconnect is not an error.
func Stream(ctx context.Context, w io.Writer, b *Bus, projectKey string, heartbeat time.Duration, log logger.Logger) error {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	if _, err := io.WriteString(w, FrameConnected); err != nil {
		return nil
	}
	flushIfPossible(w)

	frames := make(chan Delivery, streamBuffer)
	unsubscribe := b.Subscribe(projectKey, func(d Delivery) {
		select {
		case frames <- d:
		default:
			log.Warn("stream buffer full, dropping frame",
				"event_id", d.ID,
				"project", d.Project)
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case d := <-frames:
			frame, err := EncodeFrame(d)
			if err != nil {
				log.Warn("failed to encode frame",
					"event_id", d.ID,
					"error", err)
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return nil
			}
			flushIfPossible(w)

		case <-ticker.C:
			if _, err := io.WriteString(w, FrameHeartbeat); err != nil {
				return nil
			}
			flushIfPossible(w)
		}
	}
}

func flushIfPossible(w io.Writer) {
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
}
