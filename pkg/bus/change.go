package bus

import (
	"time"

	"github.com/0xmhha/bead-sync/pkg/logger"
)

// ChangeBus carries raw filesystem change signals.
type ChangeBus struct {
	*Bus
}

// NewChangeBus creates a change bus.
func NewChangeBus(log logger.Logger) *ChangeBus {
	return &ChangeBus{Bus: NewBus(log)}
}

// EmitChange stamps the bus id and timestamp onto the event and delivers
// it. Telemetry touches travel as telemetry frames so consumers know not
// to refresh; everything else travels as an issues frame.
func (b *ChangeBus) EmitChange(ev ChangeEvent) int64 {
	ev.ID = b.allocate()
	ev.Project = normalizeKey(ev.Project)
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	frameType := FrameTypeIssues
	if ev.Kind == ChangeTelemetry {
		frameType = FrameTypeTelemetry
	}

	b.dispatch(Delivery{
		ID:      ev.ID,
		Type:    frameType,
		Project: ev.Project,
		Data:    ev,
	})

	return ev.ID
}
