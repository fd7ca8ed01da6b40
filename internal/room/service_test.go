package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) Create(ctx context.Context, room *Room) (*Participant, error) {
	args := m.Called(ctx, room)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Participant), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, roomID string) (*Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Room), args.Error(1)
}

func (m *MockRepository) Exists(ctx context.Context, roomID string) (bool, error) {
	args := m.Called(ctx, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) AddParticipant(ctx context.Context, roomID, userID string) (*Participant, error) {
	args := m.Called(ctx, roomID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Participant), args.Error(1)
}

func (m *MockRepository) MarkLeft(ctx context.Context, roomID, userID string) error {
	return m.Called(ctx, roomID, userID).Error(0)
}

func (m *MockRepository) ActiveParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Participant), args.Error(1)
}

type MockBroadcaster struct{ mock.Mock }

func (m *MockBroadcaster) Publish(ctx context.Context, ev Event) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockBroadcaster) Recent(ctx context.Context, roomID string, n int64) ([]Event, error) {
	args := m.Called(ctx, roomID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Event), args.Error(1)
}

func eventOf(kind, userID string) interface{} {
	return mock.MatchedBy(func(ev Event) bool {
		return ev.Type == kind && ev.UserID == userID && !ev.OccurredAt.IsZero()
	})
}

func TestCreateRoom(t *testing.T) {
	repo := new(MockRepository)
	bc := new(MockBroadcaster)

	var stored *Room
	repo.On("Create", mock.Anything, mock.AnythingOfType("*room.Room")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*Room) }).
		Return(&Participant{UserID: "host-1"}, nil)
	bc.On("Publish", mock.Anything, eventOf(EventRoomCreated, "host-1")).Return(nil)

	room, err := NewService(repo, bc).CreateRoom(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Same(t, stored, room)
	assert.Len(t, room.RoomID, 36)
	assert.Equal(t, room.RoomID, room.Channel)
	assert.Equal(t, "host-1", room.HostID)
	bc.AssertExpectations(t)
}

func TestCreateRoom_RequiresHost(t *testing.T) {
	repo := new(MockRepository)
	bc := new(MockBroadcaster)

	_, err := NewService(repo, bc).CreateRoom(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingUser)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoinRoom_BroadcastFailureDoesNotFailJoin(t *testing.T) {
	repo := new(MockRepository)
	bc := new(MockBroadcaster)

	repo.On("AddParticipant", mock.Anything, testRoomID, "user-2").
		Return(&Participant{ID: "p-2", RoomID: testRoomID, UserID: "user-2"}, nil)
	bc.On("Publish", mock.Anything, eventOf(EventUserJoined, "user-2")).Return(errors.New("redis down"))

	p, err := NewService(repo, bc).JoinRoom(context.Background(), testRoomID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "p-2", p.ID)
	bc.AssertExpectations(t)
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	repo := new(MockRepository)
	bc := new(MockBroadcaster)
	repo.On("AddParticipant", mock.Anything, testRoomID, "user-2").Return(nil, ErrRoomNotFound)

	_, err := NewService(repo, bc).JoinRoom(context.Background(), testRoomID, "user-2")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	bc.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestLeaveRoom(t *testing.T) {
	repo := new(MockRepository)
	bc := new(MockBroadcaster)
	repo.On("MarkLeft", mock.Anything, testRoomID, "user-2").Return(nil)
	repo.On("MarkLeft", mock.Anything, testRoomID, "user-3").Return(ErrNotParticipant)
	bc.On("Publish", mock.Anything, eventOf(EventUserLeft, "user-2")).Return(nil).Once()

	svc := NewService(repo, bc)
	assert.NoError(t, svc.LeaveRoom(context.Background(), testRoomID, "user-2"))
	assert.ErrorIs(t, svc.LeaveRoom(context.Background(), testRoomID, "user-3"), ErrNotParticipant)
	bc.AssertExpectations(t)
}

func TestGetRoom(t *testing.T) {
	repo := new(MockRepository)
	bc := new(MockBroadcaster)

	room := &Room{RoomID: testRoomID, HostID: "host-1", Channel: testRoomID, CreatedAt: time.Now()}
	repo.On("Get", mock.Anything, testRoomID).Return(room, nil)
	repo.On("ActiveParticipants", mock.Anything, testRoomID).Return([]Participant{{UserID: "host-1"}}, nil)
	bc.On("Recent", mock.Anything, testRoomID, int64(recentEventsLimit)).
		Return([]Event{{Type: EventRoomCreated, RoomID: testRoomID, UserID: "host-1"}}, nil)

	d, err := NewService(repo, bc).GetRoom(context.Background(), testRoomID)
	require.NoError(t, err)
	assert.Equal(t, "host-1", d.HostID)
	assert.Len(t, d.Participants, 1)
	assert.Len(t, d.RecentEvents, 1)
}

func TestGetRoom_HistoryUnavailable(t *testing.T) {
	repo := new(MockRepository)
	bc := new(MockBroadcaster)

	repo.On("Get", mock.Anything, testRoomID).Return(&Room{RoomID: testRoomID}, nil)
	repo.On("ActiveParticipants", mock.Anything, testRoomID).Return([]Participant{}, nil)
	bc.On("Recent", mock.Anything, testRoomID, mock.Anything).Return(nil, errors.New("redis down"))

	d, err := NewService(repo, bc).GetRoom(context.Background(), testRoomID)
	require.NoError(t, err)
	assert.NotNil(t, d.RecentEvents)
	assert.Empty(t, d.RecentEvents)
}
