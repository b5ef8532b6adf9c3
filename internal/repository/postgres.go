package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fathima-sithara/realtime-chat/internal/domain"
	"github.com/fathima-sithara/realtime-chat/internal/store"
)

// PostgresRepository reads and writes the platform's own chat tables, so the
// websocket service can run next to the web application on one database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PostgresRepository)(nil)

func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const (
	selectRoom = `SELECT id, user_id, trainer_id, created_at FROM core_chatroom`

	selectMessage = `SELECT id, chat_room_id, sender_id, content, timestamp, is_read FROM core_message`
)

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var r domain.Room
	if err := row.Scan(&r.ID, &r.UserID, &r.TrainerID, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	if err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.CreatedAt, &m.IsRead); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepository) GetRoom(ctx context.Context, id int64) (*domain.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, selectRoom+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	return room, err
}

func (r *PostgresRepository) ListRooms(ctx context.Context, participantID int64) ([]*domain.RoomSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.user_id, r.trainer_id, r.created_at,
		       m.id, m.chat_room_id, m.sender_id, m.content, m.timestamp, m.is_read,
		       (SELECT count(*) FROM core_message u
		         WHERE u.chat_room_id = r.id AND u.sender_id <> $1 AND NOT u.is_read)
		  FROM core_chatroom r
		  LEFT JOIN LATERAL (
		       SELECT id, chat_room_id, sender_id, content, timestamp, is_read
		         FROM core_message
		        WHERE chat_room_id = r.id
		        ORDER BY timestamp DESC, id DESC
		        LIMIT 1) m ON true
		 WHERE r.user_id = $1 OR r.trainer_id = $1
		 ORDER BY r.created_at DESC, r.id DESC`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.RoomSummary{}
	for rows.Next() {
		var (
			room  domain.Room
			msgID *int64
			m     domain.Message
			sum   domain.RoomSummary
		)
		var (
			roomID, senderID *int64
			content          *string
			isRead           *bool
			createdAt        *time.Time
		)
		if err := rows.Scan(&room.ID, &room.UserID, &room.TrainerID, &room.CreatedAt,
			&msgID, &roomID, &senderID, &content, &createdAt, &isRead, &sum.Unread); err != nil {
			return nil, err
		}
		sum.Room = &room
		if msgID != nil {
			m.ID, m.RoomID, m.SenderID, m.Content, m.IsRead = *msgID, *roomID, *senderID, *content, *isRead
			m.CreatedAt = *createdAt
			sum.LastMessage = &m
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) OpenRoom(ctx context.Context, userID, trainerID int64) (*domain.Room, bool, error) {
	// the (user_id, trainer_id) unique constraint makes concurrent opens converge
	room, err := scanRoom(r.pool.QueryRow(ctx, `
		INSERT INTO core_chatroom (user_id, trainer_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, trainer_id) DO NOTHING
		RETURNING id, user_id, trainer_id, created_at`, userID, trainerID))
	if err == nil {
		return room, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	room, err = scanRoom(r.pool.QueryRow(ctx, selectRoom+` WHERE user_id = $1 AND trainer_id = $2`, userID, trainerID))
	if err != nil {
		return nil, false, err
	}
	return room, false, nil
}

func (r *PostgresRepository) CreateMessage(ctx context.Context, roomID, senderID int64, content string) (*domain.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO core_message (chat_room_id, sender_id, content, timestamp, is_read)
		VALUES ($1, $2, $3, now(), false)
		RETURNING id, chat_room_id, sender_id, content, timestamp, is_read`, roomID, senderID, content))
}

func (r *PostgresRepository) ListMessages(ctx context.Context, roomID int64, limit int) ([]*domain.Message, error) {
	// LIMIT NULL returns every row
	var max any
	if limit > 0 {
		max = limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT * FROM (`+selectMessage+`
		 WHERE chat_room_id = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2) latest
		ORDER BY timestamp, id`, roomID, max)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE core_message SET is_read = true
		 WHERE chat_room_id = $1 AND sender_id <> $2 AND NOT is_read`, roomID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var (
		u      domain.User
		avatar *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, profile_picture
		  FROM core_user WHERE id = $1 AND is_active`, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if avatar != nil {
		u.AvatarPath = *avatar
	}
	return &u, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close(context.Context) error {
	r.pool.Close()
	return nil
}
