package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/claimlens/claimlens/internal/core/domain"
	apperrors "github.com/claimlens/claimlens/internal/core/errors"
)

// messageMetaRecord is the JSONB shape of message provenance.
type messageMetaRecord struct {
	ChatID           string         `json:"chat_id,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	ReplyToMessageID string         `json:"reply_to_message_id,omitempty"`
	PlatformSpecific map[string]any `json:"platform_specific,omitempty"`
}

// CreateMessage inserts a message and fills its ID and creation time.
func (db *DB) CreateMessage(ctx context.Context, message *domain.Message) error {
	meta, err := marshalMeta(message.Meta)
	if err != nil {
		return fmt.Errorf("encode message metadata: %w", err)
	}

	const query = `
		INSERT INTO messages (text, source, metadata, language, is_claim, canonical_text, embedding, cluster_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	row := db.Pool.QueryRow(ctx, query,
		SanitizeUTF8(message.Text),
		string(message.Source),
		meta,
		toText(message.Language),
		message.IsClaim,
		toText(message.CanonicalText),
		toVector(message.Embedding),
		message.ClusterID,
	)

	if err := row.Scan(&message.ID, &message.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// GetMessage loads one message by ID.
func (db *DB) GetMessage(ctx context.Context, id int64) (domain.Message, error) {
	const query = `
		SELECT id, text, source, metadata, language, is_claim, canonical_text, embedding, cluster_id, created_at
		FROM messages
		WHERE id = $1`

	var (
		message   domain.Message
		source    string
		meta      []byte
		language  pgtype.Text
		canonical pgtype.Text
		embedding *pgvector.Vector
	)

	row := db.Pool.QueryRow(ctx, query, id)

	err := row.Scan(
		&message.ID,
		&message.Text,
		&source,
		&meta,
		&language,
		&message.IsClaim,
		&canonical,
		&embedding,
		&message.ClusterID,
		&message.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, apperrors.ErrMessageNotFound
		}

		return domain.Message{}, fmt.Errorf("select message %d: %w", id, err)
	}

	message.Source = domain.MessageSource(source)
	message.Language = fromText(language)
	message.CanonicalText = fromText(canonical)
	message.Embedding = fromVector(embedding)

	if message.Meta, err = unmarshalMeta(meta); err != nil {
		return domain.Message{}, fmt.Errorf("decode message metadata: %w", err)
	}

	return message, nil
}

// MessagesByCluster lists the most recent messages assigned to a cluster.
func (db *DB) MessagesByCluster(ctx context.Context, clusterID int64, limit int) ([]domain.Message, error) {
	const query = `
		SELECT id, text, source, language, created_at
		FROM messages
		WHERE cluster_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := db.Pool.Query(ctx, query, clusterID, limit)
	if err != nil {
		return nil, fmt.Errorf("select cluster messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message

	for rows.Next() {
		var (
			message  domain.Message
			source   string
			language pgtype.Text
		)

		if err := rows.Scan(&message.ID, &message.Text, &source, &language, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cluster message: %w", err)
		}

		message.Source = domain.MessageSource(source)
		message.Language = fromText(language)
		message.ClusterID = &clusterID
		message.IsClaim = true

		messages = append(messages, message)
	}

	return messages, rows.Err()
}

func marshalMeta(meta *domain.MessageMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}

	return json.Marshal(messageMetaRecord{
		ChatID:           meta.ChatID,
		UserID:           meta.UserID,
		ReplyToMessageID: meta.ReplyToMessageID,
		PlatformSpecific: meta.PlatformSpecific,
	})
}

func unmarshalMeta(data []byte) (*domain.MessageMeta, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var record messageMetaRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &domain.MessageMeta{
		ChatID:           record.ChatID,
		UserID:           record.UserID,
		ReplyToMessageID: record.ReplyToMessageID,
		PlatformSpecific: record.PlatformSpecific,
	}, nil
}
