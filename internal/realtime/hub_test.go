package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

func newTestClient(t *testing.T, hub *Hub, role models.UserRole) *Client {
	t.Helper()
	claims := &models.JWTClaims{UserID: "user-" + string(role), Role: role}
	c := NewClient(hub, nil, claims, ClientOptions{}, nil)

	// Drain the connected handshake.
	env := nextEvent(t, c)
	require.Equal(t, EventConnected, env.Event)
	return c
}

func nextEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.out:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("expected a queued event")
		return Envelope{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.out:
		t.Fatalf("unexpected event queued: %s", raw)
	default:
	}
}

func TestHubBroadcastPageReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub(nil)
	presenter := newTestClient(t, hub, models.RoleInstructor)
	studentA := newTestClient(t, hub, models.RoleStudent)
	studentB := newTestClient(t, hub, models.RoleStudent)
	outsider := newTestClient(t, hub, models.RoleStudent)

	room := RoomKey("5", "2")
	hub.Join(presenter, room)
	hub.Join(studentA, room)
	hub.Join(studentB, room)
	hub.Join(outsider, RoomKey("5", "3"))

	hub.BroadcastPage(room, presenter.ID, 7)

	for _, member := range []*Client{studentA, studentB} {
		env := nextEvent(t, member)
		require.Equal(t, EventSyncSlide, env.Event)
		var p SyncSlidePayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, 7, p.Page)
	}
	requireNoEvent(t, presenter)
	requireNoEvent(t, outsider)
}

func TestHubNoDeliveryBeforeJoin(t *testing.T) {
	hub := NewHub(nil)
	presenter := newTestClient(t, hub, models.RoleInstructor)
	room := RoomKey("5", "2")
	hub.Join(presenter, room)

	hub.BroadcastPage(room, presenter.ID, 3)

	late := newTestClient(t, hub, models.RoleStudent)
	requireNoEvent(t, late)
}

func TestHubLateJoinReplaysCurrentPage(t *testing.T) {
	hub := NewHub(nil)
	presenter := newTestClient(t, hub, models.RoleInstructor)
	room := RoomKey("5", "2")
	hub.Join(presenter, room)
	hub.BroadcastPage(room, presenter.ID, 12)

	late := newTestClient(t, hub, models.RoleStudent)
	hub.Join(late, room)

	env := nextEvent(t, late)
	require.Equal(t, EventSyncSlide, env.Event)
	var p SyncSlidePayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 12, p.Page)
}

func TestHubBroadcastPointer(t *testing.T) {
	hub := NewHub(nil)
	presenter := newTestClient(t, hub, models.RoleInstructor)
	student := newTestClient(t, hub, models.RoleStudent)
	room := RoomKey("9", "4")
	hub.Join(presenter, room)
	hub.Join(student, room)

	hub.BroadcastPointer(room, presenter.ID, LaserPointPayload{Show: true, X: 0.4, Y: 0.6})

	env := nextEvent(t, student)
	require.Equal(t, EventLaserPoint, env.Event)
	var p LaserPointPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.True(t, p.Show)
	assert.InDelta(t, 0.4, p.X, 1e-9)
	assert.InDelta(t, 0.6, p.Y, 1e-9)
	requireNoEvent(t, presenter)
}

func TestHubEmitProgress(t *testing.T) {
	hub := NewHub(nil)
	uploader := newTestClient(t, hub, models.RoleInstructor)
	bystander := newTestClient(t, hub, models.RoleInstructor)

	hub.EmitProgress(uploader.ID, 3, 10, 30)
	hub.EmitProgress("no-such-connection", 1, 2, 50)

	env := nextEvent(t, uploader)
	require.Equal(t, EventPDFProgress, env.Event)
	var p ProgressPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 3, p.Current)
	assert.Equal(t, 10, p.Total)
	assert.Equal(t, 30, p.Percent)
	requireNoEvent(t, bystander)
}

func TestHubJoinIsIdempotentAndRoomsAreCollected(t *testing.T) {
	hub := NewHub(nil)
	student := newTestClient(t, hub, models.RoleStudent)
	room := RoomKey("1", "1")

	hub.Join(student, room)
	hub.Join(student, room)
	assert.Equal(t, 1, hub.RoomSize(room))

	hub.Leave(student, room)
	assert.Equal(t, 0, hub.RoomSize(room))

	// Leaving a room you are not in is a no-op.
	hub.Leave(student, room)
}

func TestHubUnregisterRemovesFromAllRooms(t *testing.T) {
	hub := NewHub(nil)
	presenter := newTestClient(t, hub, models.RoleInstructor)
	student := newTestClient(t, hub, models.RoleStudent)
	roomA := RoomKey("1", "1")
	roomB := RoomKey("2", "2")
	hub.Join(student, roomA)
	hub.Join(student, roomB)
	hub.Join(presenter, roomA)

	hub.unregister(student)

	assert.Equal(t, 1, hub.RoomSize(roomA))
	assert.Equal(t, 0, hub.RoomSize(roomB))

	// A past member receives nothing.
	hub.BroadcastPage(roomA, presenter.ID, 2)
	requireNoEvent(t, student)
}

func TestDispatchIgnoresStudentsPresentingAndMalformedPayloads(t *testing.T) {
	hub := NewHub(nil)
	student := newTestClient(t, hub, models.RoleStudent)
	viewer := newTestClient(t, hub, models.RoleStudent)
	room := RoomKey("5", "2")
	hub.Join(student, room)
	hub.Join(viewer, room)

	student.dispatch([]byte(`{"event":"instructor-slide-change","data":{"materialId":"5","courseId":"2","page":4}}`))
	requireNoEvent(t, viewer)

	student.dispatch([]byte(`not json`))
	student.dispatch([]byte(`{"event":"join-session","data":{"materialId":""}}`))
	requireNoEvent(t, viewer)
}

func TestDispatchInstructorFlow(t *testing.T) {
	hub := NewHub(nil)
	presenter := newTestClient(t, hub, models.RoleInstructor)
	viewer := newTestClient(t, hub, models.RoleStudent)

	presenter.dispatch([]byte(`{"event":"join-session","data":{"materialId":"5","courseId":"2"}}`))
	viewer.dispatch([]byte(`{"event":"join-session","data":{"materialId":"5","courseId":"2"}}`))
	assert.Equal(t, 2, hub.RoomSize(RoomKey("5", "2")))

	presenter.dispatch([]byte(`{"event":"instructor-slide-change","data":{"materialId":"5","courseId":"2","page":7}}`))
	env := nextEvent(t, viewer)
	require.Equal(t, EventSyncSlide, env.Event)

	presenter.dispatch([]byte(`{"event":"instructor-laser","data":{"materialId":"5","courseId":"2","show":true,"x":0.1,"y":0.2}}`))
	env = nextEvent(t, viewer)
	require.Equal(t, EventLaserPoint, env.Event)
	requireNoEvent(t, presenter)
}
