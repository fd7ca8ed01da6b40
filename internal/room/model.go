package room

import "time"

type Room struct {
	RoomID    string    `db:"id" json:"room_id"`
	HostID    string    `db:"host_id" json:"host_id"`
	Channel   string    `db:"agora_channel" json:"channel"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Participant struct {
	ID       string     `db:"id" json:"id"`
	RoomID   string     `db:"room_id" json:"room_id"`
	UserID   string     `db:"user_id" json:"user_id"`
	JoinedAt time.Time  `db:"joined_at" json:"joined_at"`
	LeftAt   *time.Time `db:"left_at" json:"left_at,omitempty"`
}

// Details is a room with the people currently in it and what happened lately.
type Details struct {
	Room
	Participants []Participant `json:"participants"`
	RecentEvents []Event       `json:"recent_events"`
}

const (
	EventRoomCreated = "room_created"
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
)

// Event is a membership change broadcast to everyone watching a room.
type Event struct {
	Type       string    `json:"type"`
	RoomID     string    `json:"room_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
