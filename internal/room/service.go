package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/metrics"
)

var ErrMissingUser = errors.New("user id is required")

const recentEventsLimit = 20

type Service interface {
	CreateRoom(ctx context.Context, hostID string) (*Room, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
	JoinRoom(ctx context.Context, roomID, userID string) (*Participant, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	GetRoom(ctx context.Context, roomID string) (*Details, error)
}

type service struct {
	repo        Repository
	broadcaster Broadcaster
	now         func() time.Time
}

func NewService(repo Repository, broadcaster Broadcaster) Service {
	return &service{repo: repo, broadcaster: broadcaster, now: time.Now}
}

func (s *service) CreateRoom(ctx context.Context, hostID string) (*Room, error) {
	if hostID == "" {
		return nil, ErrMissingUser
	}

	id := uuid.NewString()
	room := &Room{RoomID: id, HostID: hostID, Channel: id}
	if _, err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	logger.Info("Room created", "room_id", room.RoomID, "host_id", hostID)
	s.announce(ctx, EventRoomCreated, room.RoomID, hostID)
	return room, nil
}

func (s *service) RoomExists(ctx context.Context, roomID string) (bool, error) {
	return s.repo.Exists(ctx, roomID)
}

func (s *service) JoinRoom(ctx context.Context, roomID, userID string) (*Participant, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	p, err := s.repo.AddParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	s.announce(ctx, EventUserJoined, roomID, userID)
	return p, nil
}

func (s *service) LeaveRoom(ctx context.Context, roomID, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if err := s.repo.MarkLeft(ctx, roomID, userID); err != nil {
		return err
	}

	s.announce(ctx, EventUserLeft, roomID, userID)
	return nil
}

func (s *service) GetRoom(ctx context.Context, roomID string) (*Details, error) {
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	participants, err := s.repo.ActiveParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}

	recent, err := s.broadcaster.Recent(ctx, roomID, recentEventsLimit)
	if err != nil {
		logger.WithError(err).WithField("room_id", roomID).Warn("Room history unavailable")
		recent = []Event{}
	}

	return &Details{Room: *room, Participants: participants, RecentEvents: recent}, nil
}

// announce is best effort: the membership change is already stored.
func (s *service) announce(ctx context.Context, kind, roomID, userID string) {
	metrics.RecordRoomEvent(kind)

	ev := Event{Type: kind, RoomID: roomID, UserID: userID, OccurredAt: s.now().UTC()}
	if err := s.broadcaster.Publish(ctx, ev); err != nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"room_id": roomID,
			"event":   kind,
		}).Warn("Room event not broadcast")
	}
}
