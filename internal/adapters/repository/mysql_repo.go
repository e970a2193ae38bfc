package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/ports"
)

// Ensure MySQLRepository implements the durable store ports.
var (
	_ ports.IdentityRepository = (*MySQLRepository)(nil)
	_ ports.ChatRoomRepository = (*MySQLRepository)(nil)
	_ ports.MessageRepository  = (*MySQLRepository)(nil)
)

const mysqlDuplicateEntry = 1062

// MySQLRepository implements the durable record store: identities, chat
// rooms and messages with their receipts. Participant sets and transfer
// histories are JSON columns; receipts live in their own table so
// idempotency is a primary-key property.
type MySQLRepository struct {
	db *sql.DB
}

// NewMySQLRepository creates a new MySQL repository instance.
func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// classify maps a database error into the core taxonomy.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.Wrap(domain.KindTransient, op, err)
	default:
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return domain.Wrap(domain.KindConflict, op, err)
		}
		return domain.Wrap(domain.KindFatal, op, err)
	}
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *MySQLRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			id CHAR(36) PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			display_name VARCHAR(128) NOT NULL DEFAULT '',
			password_hash VARCHAR(128) NOT NULL,
			role VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'offline',
			department VARCHAR(64) NOT NULL DEFAULT '',
			max_concurrent_chats INT NOT NULL DEFAULT 0,
			created_at DATETIME(3) NOT NULL,
			last_activity DATETIME(3) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
			id CHAR(36) PRIMARY KEY,
			type VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_by CHAR(36) NOT NULL,
			participants JSON NOT NULL,
			assigned_agent CHAR(36) NOT NULL DEFAULT '',
			transfer_history JSON NOT NULL,
			department VARCHAR(64) NOT NULL DEFAULT '',
			metadata JSON NOT NULL,
			created_at DATETIME(3) NOT NULL,
			last_activity DATETIME(3) NOT NULL,
			closed_by CHAR(36) NOT NULL DEFAULT '',
			closed_at DATETIME(3) NULL,
			INDEX idx_rooms_status (status),
			INDEX idx_rooms_agent (assigned_agent)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id CHAR(36) PRIMARY KEY,
			chat_room_id CHAR(36) NOT NULL,
			sender_id CHAR(36) NOT NULL,
			content TEXT NOT NULL,
			type VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			reply_to CHAR(36) NOT NULL DEFAULT '',
			is_edited TINYINT(1) NOT NULL DEFAULT 0,
			edited_at DATETIME(3) NULL,
			is_deleted TINYINT(1) NOT NULL DEFAULT 0,
			deleted_at DATETIME(3) NULL,
			created_at DATETIME(3) NOT NULL,
			INDEX idx_messages_room (chat_room_id, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS message_receipts (
			message_id CHAR(36) NOT NULL,
			identity_id CHAR(36) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			created_at DATETIME(3) NOT NULL,
			PRIMARY KEY (message_id, identity_id, kind)
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return classify("ensure schema", err)
		}
	}
	return nil
}

// ============================================================================
// IdentityRepository
// ============================================================================

// CreateIdentity inserts a new identity. A duplicate username or email maps
// to a Conflict error via the MySQL duplicate-entry code.
func (r *MySQLRepository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (
			id, username, email, display_name, password_hash, role,
			status, department, max_concurrent_chats, created_at, last_activity
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		identity.ID,
		identity.Username,
		identity.Email,
		identity.DisplayName,
		identity.PasswordHash,
		identity.Role,
		identity.Status,
		identity.Department,
		identity.MaxChats,
		identity.CreatedAt,
		identity.LastActivity,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return domain.E(domain.KindConflict, "username or email already registered")
		}
		return classify("create identity", err)
	}
	return nil
}

const identityColumns = `
	id, username, email, display_name, password_hash, role,
	status, department, max_concurrent_chats, created_at, last_activity
`

func scanIdentity(row interface{ Scan(...any) error }) (*domain.Identity, error) {
	var identity domain.Identity
	err := row.Scan(
		&identity.ID,
		&identity.Username,
		&identity.Email,
		&identity.DisplayName,
		&identity.PasswordHash,
		&identity.Role,
		&identity.Status,
		&identity.Department,
		&identity.MaxChats,
		&identity.CreatedAt,
		&identity.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// IdentityByID retrieves an identity by id.
func (r *MySQLRepository) IdentityByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ?`
	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "identity not found")
	}
	if err != nil {
		return nil, classify("get identity by id", err)
	}
	return identity, nil
}

// IdentityByUsername retrieves an identity by login name.
func (r *MySQLRepository) IdentityByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE username = ?`
	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "identity not found")
	}
	if err != nil {
		return nil, classify("get identity by username", err)
	}
	return identity, nil
}

// ListAgents returns all registered agents.
func (r *MySQLRepository) ListAgents(ctx context.Context) ([]*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE role = ? ORDER BY username`
	rows, err := r.db.QueryContext(ctx, query, domain.RoleAgent)
	if err != nil {
		return nil, classify("list agents", err)
	}
	defer rows.Close()

	var agents []*domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			slog.Error("failed to scan identity row", "error", err)
			continue
		}
		agents = append(agents, identity)
	}
	return agents, rows.Err()
}

// TouchIdentity updates status and last activity.
func (r *MySQLRepository) TouchIdentity(ctx context.Context, id string, status domain.PresenceStatus, at time.Time) error {
	query := `UPDATE identities SET status = ?, last_activity = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, status, at, id)
	if err != nil {
		return classify("touch identity", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return domain.E(domain.KindNotFound, "identity not found")
	}
	return nil
}

// ============================================================================
// ChatRoomRepository
// ============================================================================

// CreateRoom inserts a new room with its JSON-encoded participant set and
// transfer history.
func (r *MySQLRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	participants, history, metadata, err := marshalRoomJSON(room)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO chat_rooms (
			id, type, status, created_by, participants, assigned_agent,
			transfer_history, department, metadata, created_at, last_activity,
			closed_by, closed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		room.ID,
		room.Type,
		room.Status,
		room.CreatedBy,
		participants,
		room.AssignedAgent,
		history,
		room.Department,
		metadata,
		room.CreatedAt,
		room.LastActivity,
		room.ClosedBy,
		room.ClosedAt,
	)
	if err != nil {
		return classify("create room", err)
	}
	return nil
}

// RoomByID retrieves a room by id.
func (r *MySQLRepository) RoomByID(ctx context.Context, id string) (*domain.ChatRoom, error) {
	query := `
		SELECT id, type, status, created_by, participants, assigned_agent,
			   transfer_history, department, metadata, created_at, last_activity,
			   closed_by, closed_at
		FROM chat_rooms
		WHERE id = ?
	`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "room not found")
	}
	if err != nil {
		return nil, classify("get room by id", err)
	}
	return room, nil
}

// UpdateRoom overwrites the mutable room fields.
func (r *MySQLRepository) UpdateRoom(ctx context.Context, room *domain.ChatRoom) error {
	participants, history, metadata, err := marshalRoomJSON(room)
	if err != nil {
		return err
	}

	query := `
		UPDATE chat_rooms
		SET status = ?, participants = ?, assigned_agent = ?,
			transfer_history = ?, metadata = ?, last_activity = ?,
			closed_by = ?, closed_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		room.Status,
		participants,
		room.AssignedAgent,
		history,
		metadata,
		room.LastActivity,
		room.ClosedBy,
		room.ClosedAt,
		room.ID,
	)
	if err != nil {
		return classify("update room", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return domain.E(domain.KindNotFound, "room not found")
	}
	return nil
}

// FindRooms returns rooms matching the filter, most recently active first.
func (r *MySQLRepository) FindRooms(ctx context.Context, filter ports.RoomFilter) ([]*domain.ChatRoom, error) {
	where, args := roomFilterClause(filter)
	query := `
		SELECT id, type, status, created_by, participants, assigned_agent,
			   transfer_history, department, metadata, created_at, last_activity,
			   closed_by, closed_at
		FROM chat_rooms
	` + where + ` ORDER BY last_activity DESC LIMIT 200`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("find rooms", err)
	}
	defer rows.Close()

	var result []*domain.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			slog.Error("failed to scan room row", "error", err)
			continue
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

// CountRooms counts rooms matching the filter.
func (r *MySQLRepository) CountRooms(ctx context.Context, filter ports.RoomFilter) (int, error) {
	where, args := roomFilterClause(filter)
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_rooms `+where, args...).Scan(&count)
	if err != nil {
		return 0, classify("count rooms", err)
	}
	return count, nil
}

func roomFilterClause(filter ports.RoomFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Participant != "" {
		conditions = append(conditions, "JSON_CONTAINS(participants, JSON_QUOTE(?))")
		args = append(args, filter.Participant)
	}
	if filter.AssignedAgent != "" {
		conditions = append(conditions, "assigned_agent = ?")
		args = append(args, filter.AssignedAgent)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Department != "" {
		conditions = append(conditions, "department = ?")
		args = append(args, filter.Department)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func marshalRoomJSON(room *domain.ChatRoom) ([]byte, []byte, []byte, error) {
	participants := room.Participants
	if participants == nil {
		participants = []string{}
	}
	history := room.TransferHistory
	if history == nil {
		history = []domain.TransferRecord{}
	}
	metadata := room.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return nil, nil, nil, domain.Wrap(domain.KindFatal, "marshal participants", err)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, nil, nil, domain.Wrap(domain.KindFatal, "marshal transfer history", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, nil, nil, domain.Wrap(domain.KindFatal, "marshal metadata", err)
	}
	return participantsJSON, historyJSON, metadataJSON, nil
}

func scanRoom(row interface{ Scan(...any) error }) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	var participants, history, metadata []byte
	var closedAt sql.NullTime

	err := row.Scan(
		&room.ID,
		&room.Type,
		&room.Status,
		&room.CreatedBy,
		&participants,
		&room.AssignedAgent,
		&history,
		&room.Department,
		&metadata,
		&room.CreatedAt,
		&room.LastActivity,
		&room.ClosedBy,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(participants, &room.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	if err := json.Unmarshal(history, &room.TransferHistory); err != nil {
		return nil, fmt.Errorf("unmarshal transfer history: %w", err)
	}
	if err := json.Unmarshal(metadata, &room.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if closedAt.Valid {
		room.ClosedAt = &closedAt.Time
	}
	return &room, nil
}

// ============================================================================
// MessageRepository
// ============================================================================

// CreateMessage inserts a new message.
func (r *MySQLRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (
			id, chat_room_id, sender_id, content, type, status, reply_to,
			is_edited, edited_at, is_deleted, deleted_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.ChatRoomID,
		msg.SenderID,
		msg.Content,
		msg.Type,
		msg.Status,
		msg.ReplyTo,
		msg.IsEdited,
		msg.EditedAt,
		msg.IsDeleted,
		msg.DeletedAt,
		msg.CreatedAt,
	)
	if err != nil {
		return classify("create message", err)
	}
	return nil
}

// MessageByID retrieves a message with its receipts attached.
func (r *MySQLRepository) MessageByID(ctx context.Context, id string) (*domain.Message, error) {
	query := `
		SELECT id, chat_room_id, sender_id, content, type, status, reply_to,
			   is_edited, edited_at, is_deleted, deleted_at, created_at
		FROM messages
		WHERE id = ?
	`
	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.E(domain.KindNotFound, "message not found")
	}
	if err != nil {
		return nil, classify("get message by id", err)
	}
	if err := r.attachReceipts(ctx, []*domain.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateMessage overwrites the mutable message fields.
func (r *MySQLRepository) UpdateMessage(ctx context.Context, msg *domain.Message) error {
	query := `
		UPDATE messages
		SET content = ?, status = ?, is_edited = ?, edited_at = ?,
			is_deleted = ?, deleted_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		msg.Content,
		msg.Status,
		msg.IsEdited,
		msg.EditedAt,
		msg.IsDeleted,
		msg.DeletedAt,
		msg.ID,
	)
	if err != nil {
		return classify("update message", err)
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return domain.E(domain.KindNotFound, "message not found")
	}
	return nil
}

// AddReceipt records a receipt. INSERT IGNORE makes repeated recording of
// the same (message, identity, kind) a no-op.
func (r *MySQLRepository) AddReceipt(ctx context.Context, messageID, identityID string, kind domain.ReceiptKind, at time.Time) error {
	query := `
		INSERT IGNORE INTO message_receipts (message_id, identity_id, kind, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, messageID, identityID, kind, at); err != nil {
		return classify("add receipt", err)
	}
	return nil
}

// MessagesByRoom returns room history oldest first, bounded by limit.
func (r *MySQLRepository) MessagesByRoom(ctx context.Context, roomID string, limit int, before *time.Time) ([]*domain.Message, error) {
	query := `
		SELECT id, chat_room_id, sender_id, content, type, status, reply_to,
			   is_edited, edited_at, is_deleted, deleted_at, created_at
		FROM messages
		WHERE chat_room_id = ?
	`
	args := []any{roomID}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	messages, err := r.queryMessages(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachReceipts(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SearchMessages matches content case-insensitively, most recent first.
func (r *MySQLRepository) SearchMessages(ctx context.Context, roomID, term string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, chat_room_id, sender_id, content, type, status, reply_to,
			   is_edited, edited_at, is_deleted, deleted_at, created_at
		FROM messages
		WHERE chat_room_id = ? AND is_deleted = 0 AND LOWER(content) LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	pattern := "%" + strings.ToLower(term) + "%"
	messages, err := r.queryMessages(ctx, query, roomID, pattern, limit)
	if err != nil {
		return nil, err
	}
	if err := r.attachReceipts(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// CountUnread counts messages in the room not sent by and not yet read by
// the identity.
func (r *MySQLRepository) CountUnread(ctx context.Context, identityID, roomID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.chat_room_id = ?
		  AND m.sender_id <> ?
		  AND m.is_deleted = 0
		  AND NOT EXISTS (
			SELECT 1 FROM message_receipts rc
			WHERE rc.message_id = m.id AND rc.identity_id = ? AND rc.kind = ?
		  )
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, roomID, identityID, identityID, domain.ReceiptRead).Scan(&count)
	if err != nil {
		return 0, classify("count unread", err)
	}
	return count, nil
}

// CountUnreadByRoom returns unread counts for every room the identity
// participates in.
func (r *MySQLRepository) CountUnreadByRoom(ctx context.Context, identityID string) (map[string]int, error) {
	query := `
		SELECT m.chat_room_id, COUNT(*)
		FROM messages m
		JOIN chat_rooms c ON c.id = m.chat_room_id
		WHERE JSON_CONTAINS(c.participants, JSON_QUOTE(?))
		  AND m.sender_id <> ?
		  AND m.is_deleted = 0
		  AND NOT EXISTS (
			SELECT 1 FROM message_receipts rc
			WHERE rc.message_id = m.id AND rc.identity_id = ? AND rc.kind = ?
		  )
		GROUP BY m.chat_room_id
	`
	rows, err := r.db.QueryContext(ctx, query, identityID, identityID, identityID, domain.ReceiptRead)
	if err != nil {
		return nil, classify("count unread by room", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var roomID string
		var count int
		if err := rows.Scan(&roomID, &count); err != nil {
			slog.Error("failed to scan unread count row", "error", err)
			continue
		}
		counts[roomID] = count
	}
	return counts, rows.Err()
}

func (r *MySQLRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query messages", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			slog.Error("failed to scan message row", "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// attachReceipts loads delivery/read receipts for a page of messages with a
// single query.
func (r *MySQLRepository) attachReceipts(ctx context.Context, messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Message, len(messages))
	placeholders := make([]string, 0, len(messages))
	args := make([]any, 0, len(messages))
	for _, msg := range messages {
		byID[msg.ID] = msg
		placeholders = append(placeholders, "?")
		args = append(args, msg.ID)
	}

	query := `
		SELECT message_id, identity_id, kind, created_at
		FROM message_receipts
		WHERE message_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return classify("load receipts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, identityID string
		var kind domain.ReceiptKind
		var at time.Time
		if err := rows.Scan(&messageID, &identityID, &kind, &at); err != nil {
			slog.Error("failed to scan receipt row", "error", err)
			continue
		}
		msg, ok := byID[messageID]
		if !ok {
			continue
		}
		receipt := domain.Receipt{IdentityID: identityID, Timestamp: at}
		switch kind {
		case domain.ReceiptDelivered:
			msg.DeliveredTo = append(msg.DeliveredTo, receipt)
		case domain.ReceiptRead:
			msg.ReadBy = append(msg.ReadBy, receipt)
		}
	}
	return rows.Err()
}

func scanMessage(row interface{ Scan(...any) error }) (*domain.Message, error) {
	var msg domain.Message
	var editedAt, deletedAt sql.NullTime

	err := row.Scan(
		&msg.ID,
		&msg.ChatRoomID,
		&msg.SenderID,
		&msg.Content,
		&msg.Type,
		&msg.Status,
		&msg.ReplyTo,
		&msg.IsEdited,
		&editedAt,
		&msg.IsDeleted,
		&deletedAt,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if editedAt.Valid {
		msg.EditedAt = &editedAt.Time
	}
	if deletedAt.Valid {
		msg.DeletedAt = &deletedAt.Time
	}
	return &msg, nil
}
