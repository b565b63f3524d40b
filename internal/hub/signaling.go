package hub

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/protocol"
)

// Relay forwards a WebRTC signaling frame to its target peer. The SDP
// and candidate payloads pass through untouched; the relay only
// re-addresses the frame with the sender's id. Frames for peers outside
// the sender's room or with no live connection are dropped silently,
// matching ICE's tolerance for lost candidates.
type Relay struct {
	manager *Manager
	logger  *slog.Logger
}

func NewRelay(manager *Manager, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{manager: manager, logger: logger}
}

// Forward relays one signaling frame from conn to sig.TargetUserID.
func (r *Relay) Forward(conn *Connection, frameType string, sig *protocol.Signal) {
	targetID, err := uuid.Parse(sig.TargetUserID)
	if err != nil {
		r.logger.Debug("signal with invalid target", "target", sig.TargetUserID)
		metrics.SignalsDropped.Inc()
		return
	}
	if targetID == conn.UserID {
		metrics.SignalsDropped.Inc()
		return
	}

	target := r.manager.Get(conn.RoomID, targetID)
	if target == nil {
		r.logger.Debug("signal target not in room", "target", targetID, "room_id", conn.RoomID)
		metrics.SignalsDropped.Inc()
		return
	}

	forwarded := &protocol.ForwardedSignal{
		Type:       frameType,
		FromUserID: conn.UserID.String(),
		Offer:      sig.Offer,
		Answer:     sig.Answer,
		Candidate:  sig.Candidate,
	}
	if target.Send(forwarded) {
		metrics.SignalsForwarded.WithLabelValues(frameType).Inc()
	}
}
