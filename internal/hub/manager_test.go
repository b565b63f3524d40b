package hub

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelroom/babelroom/internal/domain/models"
	"github.com/babelroom/babelroom/internal/protocol"
)

type stubIDs struct{ n atomic.Int64 }

func (s *stubIDs) GenerateConnectionID() string { return fmt.Sprintf("bc%d", s.n.Add(1)) }

// dialTestConn returns both ends of a live websocket.
func dialTestConn(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	server = <-accepted
	return server, client
}

func readFrame(t *testing.T, client *websocket.Conn) map[string]any {
	t.Helper()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	require.NoError(t, client.ReadJSON(&frame))
	return frame
}

func testUser(name string) *models.User {
	return &models.User{ID: uuid.New(), Username: name, FullName: strings.ToUpper(name)}
}

func TestConnectBroadcastsJoinWithRoster(t *testing.T) {
	m := NewManager(&stubIDs{}, 50, 8, nil)

	alice := testUser("alice")
	wsA, clientA := dialTestConn(t)
	_, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)

	joined := readFrame(t, clientA)
	assert.Equal(t, protocol.TypeParticipantJoined, joined["type"])
	assert.Equal(t, alice.ID.String(), joined["user_id"])

	bob := testUser("bob")
	wsB, clientB := dialTestConn(t)
	_, err = m.Connect(wsB, bob.ID, "room-1", bob)
	require.NoError(t, err)

	// Both sockets see bob's arrival with the full roster.
	for _, client := range []*websocket.Conn{clientA, clientB} {
		frame := readFrame(t, client)
		assert.Equal(t, protocol.TypeParticipantJoined, frame["type"])
		assert.Equal(t, bob.ID.String(), frame["user_id"])
		assert.Len(t, frame["participants"], 2)
	}
}

func TestReconnectReplacesWithoutLeftBroadcast(t *testing.T) {
	m := NewManager(&stubIDs{}, 50, 8, nil)

	alice := testUser("alice")
	wsOld, clientOld := dialTestConn(t)
	old, err := m.Connect(wsOld, alice.ID, "room-1", alice)
	require.NoError(t, err)
	readFrame(t, clientOld) // own join

	wsNew, clientNew := dialTestConn(t)
	replacement, err := m.Connect(wsNew, alice.ID, "room-1", alice)
	require.NoError(t, err)

	// The old client observes close code 4001, not a participant_left.
	clientOld.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := clientOld.ReadMessage()
		if err != nil {
			closeErr, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected close error, got %v", err)
			assert.Equal(t, protocol.CloseReplaced, closeErr.Code)
			break
		}
	}

	assert.Same(t, replacement, m.Get("room-1", alice.ID))
	assert.Len(t, m.Participants("room-1"), 1)

	// A late Disconnect of the stale connection must not evict the new one.
	m.Disconnect(old, protocol.CloseNormal, "")
	assert.Same(t, replacement, m.Get("room-1", alice.ID))

	frame := readFrame(t, clientNew)
	assert.Equal(t, protocol.TypeParticipantJoined, frame["type"])
}

func TestRoomCapacity(t *testing.T) {
	m := NewManager(&stubIDs{}, 2, 8, nil)

	for i := 0; i < 2; i++ {
		ws, _ := dialTestConn(t)
		_, err := m.Connect(ws, uuid.New(), "room-1", testUser(fmt.Sprintf("u%d", i)))
		require.NoError(t, err)
	}

	ws, _ := dialTestConn(t)
	_, err := m.Connect(ws, uuid.New(), "room-1", testUser("late"))
	assert.ErrorIs(t, err, ErrRoomFull)

	// A reconnect of an existing member is not a new occupant.
	existing := m.Participants("room-1")[0]
	userID, perr := uuid.Parse(existing.ID)
	require.NoError(t, perr)
	ws2, _ := dialTestConn(t)
	_, err = m.Connect(ws2, userID, "room-1", testUser("again"))
	assert.NoError(t, err)
}

func TestDisconnectBroadcastsLeft(t *testing.T) {
	m := NewManager(&stubIDs{}, 50, 8, nil)

	alice, bob := testUser("alice"), testUser("bob")
	wsA, clientA := dialTestConn(t)
	connA, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)
	wsB, clientB := dialTestConn(t)
	_, err = m.Connect(wsB, bob.ID, "room-1", bob)
	require.NoError(t, err)

	readFrame(t, clientA) // alice join
	readFrame(t, clientA) // bob join
	readFrame(t, clientB) // bob join

	m.Disconnect(connA, protocol.CloseNormal, "")

	frame := readFrame(t, clientB)
	assert.Equal(t, protocol.TypeParticipantLeft, frame["type"])
	assert.Equal(t, alice.ID.String(), frame["user_id"])
	assert.Len(t, frame["participants"], 1)

	assert.Nil(t, m.Get("room-1", alice.ID))
}

func TestSendToUserAbsent(t *testing.T) {
	m := NewManager(&stubIDs{}, 50, 8, nil)
	assert.False(t, m.SendToUser("room-1", uuid.New(), "frame"))
}

func TestPeersExcludesSpeaker(t *testing.T) {
	m := NewManager(&stubIDs{}, 50, 8, nil)

	alice, bob := testUser("alice"), testUser("bob")
	wsA, _ := dialTestConn(t)
	_, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)
	wsB, _ := dialTestConn(t)
	connB, err := m.Connect(wsB, bob.ID, "room-1", bob)
	require.NoError(t, err)
	connB.SetOutputLanguage("pt")

	peers := m.Peers("room-1", alice.ID)
	require.Len(t, peers, 1)
	assert.Equal(t, bob.ID, peers[0].UserID)
	assert.Equal(t, "pt", peers[0].OutputLanguage())
}

func TestSendDropsOldestWhenFull(t *testing.T) {
	ws, _ := dialTestConn(t)
	// No writer pump: frames pile up in the channel.
	conn := newConnection("bc1", uuid.New(), "room-1", "alice", "", ws, 2, testLogger())

	assert.True(t, conn.Send("one"))
	assert.True(t, conn.Send("two"))
	assert.True(t, conn.Send("three")) // evicts "one"

	assert.Equal(t, "two", <-conn.outbound)
	assert.Equal(t, "three", <-conn.outbound)
}

func TestSendAfterCloseFails(t *testing.T) {
	ws, _ := dialTestConn(t)
	conn := newConnection("bc1", uuid.New(), "room-1", "alice", "", ws, 2, testLogger())
	conn.Close(protocol.CloseNormal, "")
	conn.Close(protocol.CloseNormal, "") // idempotent
	assert.False(t, conn.Send("frame"))
}
