package handlers

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/config"
	"github.com/babelroom/babelroom/internal/domain/models"
	"github.com/babelroom/babelroom/internal/hub"
	"github.com/babelroom/babelroom/internal/pipeline"
	"github.com/babelroom/babelroom/internal/ports"
	"github.com/babelroom/babelroom/internal/protocol"
)

const (
	pongWait     = 60 * time.Second
	maxFrameSize = 1 << 20
)

// AudioWSHandler owns the room WebSocket endpoint: it authenticates the
// handshake, registers the connection with the hub and dispatches
// inbound frames to the pipeline and the signaling relay.
type AudioWSHandler struct {
	upgrader  websocket.Upgrader
	auth      ports.AuthPort
	users     ports.UserDirectory
	rooms     ports.RoomRegistry
	hub       *hub.Manager
	relay     *hub.Relay
	pipelines *pipeline.Manager
	cfg       config.PipelineConfig
}

func NewAudioWSHandler(
	auth ports.AuthPort,
	users ports.UserDirectory,
	rooms ports.RoomRegistry,
	hubManager *hub.Manager,
	relay *hub.Relay,
	pipelines *pipeline.Manager,
	cfg config.PipelineConfig,
	allowedOrigins []string,
) *AudioWSHandler {
	allowedOriginsMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedOriginsMap[origin] = true
	}

	return &AudioWSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return allowedOriginsMap[origin]
			},
		},
		auth:      auth,
		users:     users,
		rooms:     rooms,
		hub:       hubManager,
		relay:     relay,
		pipelines: pipelines,
		cfg:       cfg,
	}
}

// Handle upgrades the connection and runs the read loop until the
// client disconnects.
func (h *AudioWSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	userID, err := h.auth.Validate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		closeWith(ws, protocol.ClosePolicy, protocol.ReasonAuth)
		return
	}

	exists, err := h.rooms.Exists(r.Context(), roomID)
	if err != nil {
		log.Printf("room lookup failed for %s: %v", roomID, err)
		closeWith(ws, protocol.CloseInternal, "room lookup failed")
		return
	}
	if !exists {
		closeWith(ws, protocol.ClosePolicy, protocol.ReasonNoSuchRoom)
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		log.Printf("user lookup failed for %s: %v", userID, err)
	}

	conn, err := h.hub.Connect(ws, userID, roomID, user)
	if err != nil {
		closeWith(ws, protocol.ClosePolicy, protocol.ReasonRoomFull)
		return
	}

	conn.Send(&protocol.Connected{
		Type:   protocol.TypeConnected,
		UserID: userID.String(),
		RoomID: roomID,
	})

	h.readLoop(r.Context(), ws, conn, user)
}

func (h *AudioWSHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *hub.Connection, user *models.User) {
	limiter := newTokenBucket(h.cfg.MaxChunksPerSec)

	// owned is the processor this connection started. Teardown releases
	// only that one: after a replace-on-reconnect the replaced loop must
	// not stop the new connection's processor.
	var owned *pipeline.Processor
	defer func() {
		h.pipelines.Release(conn.RoomID, conn.UserID, owned)
		h.hub.Disconnect(conn, protocol.CloseNormal, "")
	}()

	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("connection %s read error: %v", conn.ID, err)
			}
			return
		}

		envelope, err := protocol.ParseEnvelope(data)
		if err != nil {
			log.Printf("connection %s sent malformed frame: %v", conn.ID, err)
			continue
		}
		metrics.InboundFramesTotal.WithLabelValues(envelope.Type).Inc()

		switch envelope.Type {
		case protocol.TypeInitSettings:
			owned = h.handleInitSettings(ctx, conn, user, envelope, owned)
		case protocol.TypeLanguageUpdate:
			h.handleLanguageUpdate(conn, envelope)
		case protocol.TypeAudioChunk:
			h.handleAudioChunk(conn, envelope, limiter)
		case protocol.TypeControl:
			h.handleControl(conn, envelope)
		case protocol.TypeWebRTCOffer, protocol.TypeWebRTCAnswer, protocol.TypeICECandidate:
			h.handleSignal(conn, envelope)
		default:
			log.Printf("connection %s sent unknown frame type %q", conn.ID, envelope.Type)
		}
	}
}

func (h *AudioWSHandler) handleInitSettings(ctx context.Context, conn *hub.Connection, user *models.User, envelope *protocol.Envelope, owned *pipeline.Processor) *pipeline.Processor {
	var init protocol.InitSettings
	if err := envelope.Decode(&init); err != nil {
		conn.Send(errorFrame("invalid init_settings"))
		return owned
	}

	settings := h.resolveSettings(init.InputLanguage, init.OutputLanguage, init.SpeaksLanguages, user)
	conn.SetOutputLanguage(settings.OutputLanguage)

	// A re-sent init_settings updates the running processor in place so
	// per-listener seq counters keep counting.
	if owned != nil && h.pipelines.Get(conn.RoomID, conn.UserID) == owned {
		owned.UpdateSettings(settings)
		conn.Send(&protocol.LanguageUpdated{
			Type:           protocol.TypeLanguageUpdated,
			InputLanguage:  settings.InputLanguage,
			OutputLanguage: settings.OutputLanguage,
		})
		return owned
	}

	roomID, speakerID := conn.RoomID, conn.UserID
	roster := func() []pipeline.Listener {
		peers := h.hub.Peers(roomID, speakerID)
		listeners := make([]pipeline.Listener, 0, len(peers))
		for _, peer := range peers {
			listeners = append(listeners, pipeline.Listener{
				UserID:   peer.UserID,
				Language: peer.OutputLanguage(),
			})
		}
		return listeners
	}

	// The processor must outlive this request context.
	proc := h.pipelines.Start(context.WithoutCancel(ctx), roomID, speakerID, settings, roster, h.hub.RoomHandle(roomID))

	conn.Send(&protocol.LanguageUpdated{
		Type:           protocol.TypeLanguageUpdated,
		InputLanguage:  settings.InputLanguage,
		OutputLanguage: settings.OutputLanguage,
	})
	return proc
}

func (h *AudioWSHandler) handleLanguageUpdate(conn *hub.Connection, envelope *protocol.Envelope) {
	var update protocol.LanguageUpdate
	if err := envelope.Decode(&update); err != nil {
		conn.Send(errorFrame("invalid language_update"))
		return
	}

	proc := h.pipelines.Get(conn.RoomID, conn.UserID)
	if proc == nil {
		conn.Send(errorFrame("send init_settings first"))
		return
	}

	settings := h.resolveSettings(update.InputLanguage, update.OutputLanguage, update.SpeaksLanguages, nil)
	proc.UpdateSettings(settings)
	conn.SetOutputLanguage(settings.OutputLanguage)

	conn.Send(&protocol.LanguageUpdated{
		Type:           protocol.TypeLanguageUpdated,
		InputLanguage:  settings.InputLanguage,
		OutputLanguage: settings.OutputLanguage,
	})
}

func (h *AudioWSHandler) handleAudioChunk(conn *hub.Connection, envelope *protocol.Envelope, limiter *tokenBucket) {
	if !limiter.allow() {
		log.Printf("connection %s exceeds audio chunk rate, dropping", conn.ID)
		return
	}

	var chunk protocol.AudioChunk
	if err := envelope.Decode(&chunk); err != nil {
		conn.Send(errorFrame("invalid audio_chunk"))
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(chunk.AudioData)
	if err != nil {
		conn.Send(errorFrame("audio_data is not valid base64"))
		return
	}

	proc := h.pipelines.Get(conn.RoomID, conn.UserID)
	if proc == nil {
		return
	}
	if err := proc.Feed(pcm); err != nil {
		log.Printf("connection %s feed failed: %v", conn.ID, err)
	}
}

func (h *AudioWSHandler) handleControl(conn *hub.Connection, envelope *protocol.Envelope) {
	var control protocol.Control
	if err := envelope.Decode(&control); err != nil {
		conn.Send(errorFrame("invalid control"))
		return
	}

	proc := h.pipelines.Get(conn.RoomID, conn.UserID)
	if proc == nil {
		conn.Send(errorFrame("send init_settings first"))
		return
	}

	switch control.Action {
	case protocol.ActionMute:
		proc.SetMuted(true)
	case protocol.ActionUnmute:
		proc.SetMuted(false)
	default:
		conn.Send(errorFrame("unknown control action"))
		return
	}

	conn.Send(&protocol.MuteStatus{Type: protocol.TypeMuteStatus, Muted: proc.Muted()})
}

func (h *AudioWSHandler) handleSignal(conn *hub.Connection, envelope *protocol.Envelope) {
	var signal protocol.Signal
	if err := envelope.Decode(&signal); err != nil {
		conn.Send(errorFrame("invalid signaling frame"))
		return
	}
	h.relay.Forward(conn, envelope.Type, &signal)
}

// resolveSettings fills missing languages from the user's stored
// preferences.
func (h *AudioWSHandler) resolveSettings(input, output string, speaks []string, user *models.User) pipeline.Settings {
	if user != nil {
		if input == "" {
			input = user.InputLanguage()
		}
		if output == "" {
			output = user.OutputLanguage()
		}
		if len(speaks) == 0 {
			speaks = user.SpeaksLanguages
		}
	}
	if input == "" {
		input = "auto"
	}
	if output == "" {
		output = "en"
	}
	return pipeline.Settings{
		InputLanguage:   models.NormalizeLanguage(input),
		OutputLanguage:  models.NormalizeLanguage(output),
		SpeaksLanguages: models.NormalizeLanguages(speaks),
	}
}

func errorFrame(text string) *protocol.ErrorFrame {
	return &protocol.ErrorFrame{Type: protocol.TypeError, Text: text}
}

// closeWith rejects a socket that never made it into the hub.
func closeWith(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(5 * time.Second)
	ws.SetWriteDeadline(deadline)
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	ws.Close()
}
