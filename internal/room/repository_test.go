package room

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoomID = "7f1d2c9e-3a4b-4c5d-8e6f-0a1b2c3d4e5f"

var participantColumns = []string{"id", "room_id", "user_id", "joined_at", "left_at"}

func setupRoomMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return sqlxDB, mock, func() { sqlxDB.Close() }
}

func TestCreate_SeatsHost(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	created := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO group_room.rooms")).
		WithArgs(testRoomID, "host-1", testRoomID).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO group_room.participants")).
		WithArgs(testRoomID, "host-1").
		WillReturnRows(sqlmock.NewRows(participantColumns).AddRow("p-1", testRoomID, "host-1", created, nil))
	mock.ExpectCommit()

	room := &Room{RoomID: testRoomID, HostID: "host-1", Channel: testRoomID}
	host, err := NewRepository(db).Create(context.Background(), room)

	require.NoError(t, err)
	assert.Equal(t, created, room.CreatedAt)
	assert.Equal(t, "host-1", host.UserID)
	assert.Nil(t, host.LeftAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RollsBackWhenHostCannotBeSeated(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO group_room.rooms")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO group_room.participants")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := NewRepository(db).Create(context.Background(), &Room{RoomID: testRoomID, HostID: "host-1", Channel: testRoomID})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM group_room.rooms")).
		WithArgs(testRoomID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "host_id", "agora_channel", "created_at"}).
			AddRow(testRoomID, "host-1", testRoomID, time.Now()))

	room, err := NewRepository(db).Get(context.Background(), testRoomID)
	require.NoError(t, err)
	assert.Equal(t, "host-1", room.HostID)
}

func TestGet_NotFound(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM group_room.rooms")).
		WithArgs(testRoomID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "host_id", "agora_channel", "created_at"}))

	_, err := NewRepository(db).Get(context.Background(), testRoomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGet_MalformedIDSkipsQuery(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	_, err := NewRepository(db).Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM group_room.rooms WHERE id = $1)")).
		WithArgs(testRoomID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewRepository(db)
	ok, err := repo.Exists(context.Background(), testRoomID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(context.Background(), "room-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddParticipant_UnknownRoom(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO group_room.participants")).
		WithArgs(testRoomID, "user-2").
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := NewRepository(db).AddParticipant(context.Background(), testRoomID, "user-2")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestAddParticipant_AlreadySeatedReturnsExistingSeat(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	joined := time.Now().Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (room_id, user_id) WHERE left_at IS NULL")).
		WithArgs(testRoomID, "user-2").
		WillReturnRows(sqlmock.NewRows(participantColumns).
			AddRow("p-2", testRoomID, "user-2", joined, nil))

	p, err := NewRepository(db).AddParticipant(context.Background(), testRoomID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "p-2", p.ID)
	assert.Nil(t, p.LeftAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddParticipant_MalformedIDSkipsQuery(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	_, err := NewRepository(db).AddParticipant(context.Background(), "not-a-uuid", "user-2")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLeft_MalformedIDSkipsQuery(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	err := NewRepository(db).MarkLeft(context.Background(), "not-a-uuid", "user-2")
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLeft_InvalidTextIsNotParticipant(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_room.participants")).
		WithArgs(testRoomID, "user-2").
		WillReturnError(&pq.Error{Code: "22P02"})

	err := NewRepository(db).MarkLeft(context.Background(), testRoomID, "user-2")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestMarkLeft(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_room.participants")).
		WithArgs(testRoomID, "user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_room.participants")).
		WithArgs(testRoomID, "user-3").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRepository(db)
	assert.NoError(t, repo.MarkLeft(context.Background(), testRoomID, "user-2"))
	assert.ErrorIs(t, repo.MarkLeft(context.Background(), testRoomID, "user-3"), ErrNotParticipant)
}

func TestActiveParticipants(t *testing.T) {
	db, mock, close := setupRoomMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("left_at IS NULL")).
		WithArgs(testRoomID).
		WillReturnRows(sqlmock.NewRows(participantColumns).
			AddRow("p-1", testRoomID, "host-1", now, nil).
			AddRow("p-2", testRoomID, "user-2", now, nil))

	got, err := NewRepository(db).ActiveParticipants(context.Background(), testRoomID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
