package hub

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/domain/models"
	"github.com/babelroom/babelroom/internal/ports"
	"github.com/babelroom/babelroom/internal/protocol"
)

// ErrRoomFull is returned when a room has reached its participant cap.
var ErrRoomFull = errors.New("room is full")

type connKey struct {
	userID uuid.UUID
	roomID string
}

// Manager is the room connection registry. One Connection exists per
// (user, room); a reconnect replaces the previous socket.
type Manager struct {
	ids           ports.IDGenerator
	maxRoomSize   int
	outboundDepth int
	logger        *slog.Logger

	mu    sync.Mutex
	conns map[connKey]*Connection
	rooms map[string]map[uuid.UUID]*Connection
}

func NewManager(ids ports.IDGenerator, maxRoomSize, outboundDepth int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRoomSize < 2 {
		maxRoomSize = 50
	}
	return &Manager{
		ids:           ids,
		maxRoomSize:   maxRoomSize,
		outboundDepth: outboundDepth,
		logger:        logger,
		conns:         make(map[connKey]*Connection),
		rooms:         make(map[string]map[uuid.UUID]*Connection),
	}
}

// Connect registers a socket for (user, room) and starts its writer
// pump. An existing connection for the pair is closed with code 4001
// and replaced without a participant_left broadcast. The join is
// announced to the whole room with a roster snapshot.
func (m *Manager) Connect(ws *websocket.Conn, userID uuid.UUID, roomID string, user *models.User) (*Connection, error) {
	username := userID.String()
	fullName := ""
	if user != nil {
		username = user.Username
		fullName = user.FullName
	}

	key := connKey{userID: userID, roomID: roomID}

	m.mu.Lock()
	room := m.rooms[roomID]
	replaced := m.conns[key]
	if replaced == nil && len(room) >= m.maxRoomSize {
		m.mu.Unlock()
		return nil, ErrRoomFull
	}

	conn := newConnection(m.ids.GenerateConnectionID(), userID, roomID, username, fullName, ws, m.outboundDepth, m.logger)
	m.conns[key] = conn
	if room == nil {
		room = make(map[uuid.UUID]*Connection)
		m.rooms[roomID] = room
	}
	room[userID] = conn
	m.mu.Unlock()

	if replaced != nil {
		replaced.Close(protocol.CloseReplaced, protocol.ReasonReplaced)
		metrics.ConnectionsReplaced.Inc()
		m.logger.Info("connection replaced", "user_id", userID, "room_id", roomID)
	} else {
		metrics.ConnectionsActive.Inc()
	}
	m.updateRoomGauge()

	go conn.writePump()

	m.Broadcast(roomID, &protocol.ParticipantJoined{
		Type:         protocol.TypeParticipantJoined,
		UserID:       userID.String(),
		UserName:     username,
		Participants: m.Participants(roomID),
	})

	return conn, nil
}

// Disconnect removes a connection and announces the departure. When the
// registered connection for the pair is not conn (it was replaced), the
// call only closes the stale socket.
func (m *Manager) Disconnect(conn *Connection, closeCode int, reason string) {
	key := connKey{userID: conn.UserID, roomID: conn.RoomID}

	m.mu.Lock()
	current := m.conns[key]
	owned := current == conn
	if owned {
		delete(m.conns, key)
		if room := m.rooms[conn.RoomID]; room != nil {
			delete(room, conn.UserID)
			if len(room) == 0 {
				delete(m.rooms, conn.RoomID)
			}
		}
	}
	m.mu.Unlock()

	conn.Close(closeCode, reason)

	if !owned {
		return
	}

	metrics.ConnectionsActive.Dec()
	m.updateRoomGauge()

	m.Broadcast(conn.RoomID, &protocol.ParticipantLeft{
		Type:         protocol.TypeParticipantLeft,
		UserID:       conn.UserID.String(),
		Participants: m.Participants(conn.RoomID),
	})
}

// Get returns the live connection for (user, room), or nil.
func (m *Manager) Get(roomID string, userID uuid.UUID) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns[connKey{userID: userID, roomID: roomID}]
}

// SendToUser enqueues a frame for one participant. Returns false when
// the user has no connection in the room or the frame was dropped.
func (m *Manager) SendToUser(roomID string, userID uuid.UUID, frame any) bool {
	conn := m.Get(roomID, userID)
	if conn == nil {
		return false
	}
	return conn.Send(frame)
}

// Broadcast enqueues a frame for every participant in the room.
func (m *Manager) Broadcast(roomID string, frame any) {
	for _, conn := range m.roomConns(roomID) {
		conn.Send(frame)
	}
}

// Peers returns every connection in the room except exclude.
func (m *Manager) Peers(roomID string, exclude uuid.UUID) []*Connection {
	var peers []*Connection
	for _, conn := range m.roomConns(roomID) {
		if conn.UserID != exclude {
			peers = append(peers, conn)
		}
	}
	return peers
}

// Participants returns a stable roster snapshot for the room.
func (m *Manager) Participants(roomID string) []models.Participant {
	conns := m.roomConns(roomID)
	participants := make([]models.Participant, 0, len(conns))
	for _, conn := range conns {
		name := conn.FullName
		if name == "" {
			name = conn.Username
		}
		participants = append(participants, models.Participant{
			ID:       conn.UserID.String(),
			Username: conn.Username,
			FullName: conn.FullName,
			Name:     name,
		})
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})
	return participants
}

// RoomHandle binds the manager to one room, giving the pipeline a
// room-scoped delivery surface.
func (m *Manager) RoomHandle(roomID string) *RoomHandle {
	return &RoomHandle{manager: m, roomID: roomID}
}

// RoomHandle is a room-scoped view over the manager.
type RoomHandle struct {
	manager *Manager
	roomID  string
}

func (h *RoomHandle) SendToUser(userID uuid.UUID, frame any) bool {
	return h.manager.SendToUser(h.roomID, userID, frame)
}

func (h *RoomHandle) Broadcast(frame any) {
	h.manager.Broadcast(h.roomID, frame)
}

func (m *Manager) roomConns(roomID string) []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.rooms[roomID]
	conns := make([]*Connection, 0, len(room))
	for _, conn := range room {
		conns = append(conns, conn)
	}
	return conns
}

func (m *Manager) updateRoomGauge() {
	m.mu.Lock()
	n := len(m.rooms)
	m.mu.Unlock()
	metrics.RoomsActive.Set(float64(n))
}
