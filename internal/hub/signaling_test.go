package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelroom/babelroom/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func relayFixture(t *testing.T) (*Relay, *Manager) {
	t.Helper()
	m := NewManager(&stubIDs{}, 50, 8, testLogger())
	return NewRelay(m, testLogger()), m
}

// readUntilType drains frames until one matches the wanted type.
func readUntilType(t *testing.T, client *websocket.Conn, wanted string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frame := readFrame(t, client)
		if frame["type"] == wanted {
			return frame
		}
	}
	t.Fatalf("no %q frame received", wanted)
	return nil
}

func TestForwardOfferToPeer(t *testing.T) {
	relay, m := relayFixture(t)

	alice, bob := testUser("alice"), testUser("bob")
	wsA, _ := dialTestConn(t)
	connA, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)
	wsB, clientB := dialTestConn(t)
	_, err = m.Connect(wsB, bob.ID, "room-1", bob)
	require.NoError(t, err)

	offer := json.RawMessage(`{"sdp":"v=0...","type":"offer"}`)
	relay.Forward(connA, protocol.TypeWebRTCOffer, &protocol.Signal{
		TargetUserID: bob.ID.String(),
		Offer:        offer,
	})

	frame := readUntilType(t, clientB, protocol.TypeWebRTCOffer)
	assert.Equal(t, alice.ID.String(), frame["from_user_id"])

	payload, merr := json.Marshal(frame["offer"])
	require.NoError(t, merr)
	assert.JSONEq(t, string(offer), string(payload), "payload must pass through unmodified")
}

func TestForwardCandidateRoundTrip(t *testing.T) {
	relay, m := relayFixture(t)

	alice, bob := testUser("alice"), testUser("bob")
	wsA, _ := dialTestConn(t)
	connA, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)
	wsB, clientB := dialTestConn(t)
	_, err = m.Connect(wsB, bob.ID, "room-1", bob)
	require.NoError(t, err)

	candidate := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54400 typ host","sdpMid":"0"}`)
	relay.Forward(connA, protocol.TypeICECandidate, &protocol.Signal{
		TargetUserID: bob.ID.String(),
		Candidate:    candidate,
	})

	frame := readUntilType(t, clientB, protocol.TypeICECandidate)
	payload, merr := json.Marshal(frame["candidate"])
	require.NoError(t, merr)
	assert.JSONEq(t, string(candidate), string(payload))
}

func TestForwardAbsentTargetIsSilent(t *testing.T) {
	relay, m := relayFixture(t)

	alice := testUser("alice")
	wsA, _ := dialTestConn(t)
	connA, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)

	relay.Forward(connA, protocol.TypeICECandidate, &protocol.Signal{
		TargetUserID: uuid.NewString(),
		Candidate:    json.RawMessage(`{"candidate":"..."}`),
	})
	// No panic, no error frame: the drop is silent.
}

func TestForwardDoesNotCrossRooms(t *testing.T) {
	relay, m := relayFixture(t)

	alice, eve := testUser("alice"), testUser("eve")
	wsA, _ := dialTestConn(t)
	connA, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)
	wsE, clientE := dialTestConn(t)
	_, err = m.Connect(wsE, eve.ID, "room-2", eve)
	require.NoError(t, err)

	relay.Forward(connA, protocol.TypeWebRTCAnswer, &protocol.Signal{
		TargetUserID: eve.ID.String(),
		Answer:       json.RawMessage(`{"type":"answer"}`),
	})

	// Eve only ever sees her own join; the cross-room answer is dropped.
	frame := readFrame(t, clientE)
	assert.Equal(t, protocol.TypeParticipantJoined, frame["type"])

	clientE.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var next map[string]any
	assert.Error(t, clientE.ReadJSON(&next), "no further frame expected")
}

func TestForwardRejectsInvalidTarget(t *testing.T) {
	relay, m := relayFixture(t)

	alice := testUser("alice")
	wsA, _ := dialTestConn(t)
	connA, err := m.Connect(wsA, alice.ID, "room-1", alice)
	require.NoError(t, err)

	relay.Forward(connA, protocol.TypeWebRTCOffer, &protocol.Signal{TargetUserID: "not-a-uuid"})
	relay.Forward(connA, protocol.TypeWebRTCOffer, &protocol.Signal{TargetUserID: connA.UserID.String()})
}
