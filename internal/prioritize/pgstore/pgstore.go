// Package pgstore provides a PostgreSQL implementation of prioritize.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sift/internal/prioritize"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/prioritize/pgstore")

//go:embed schema.sql
var schema string

// defaultListLimit bounds List results when the filter doesn't set one.
const defaultListLimit = 100

// Store persists scored messages in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const messageColumns = `id, message_id, channel_id, channel_name, user_id, user_name, text, ts,
	thread_ts, is_thread_parent, reply_count, mentioned_users, has_files, reaction_count,
	status, score, reason, category, source, adjustments, model, created_at, scored_at`

// Get retrieves a scored message by ID.
//
//nolint:dupl // similar structure to GetByMessageID is intentional
func (s *Store) Get(ctx context.Context, id string) (*prioritize.ScoredMessage, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + messageColumns + ` FROM scored_messages WHERE id = $1`
	m, err := scanMessageRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if m == nil {
		return nil, false, nil
	}
	return m, true, nil
}

// GetByMessageID retrieves a scored message by its upstream message ID, for
// deduplication.
//
//nolint:dupl // similar structure to Get is intentional
func (s *Store) GetByMessageID(ctx context.Context, messageID string) (*prioritize.ScoredMessage, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByMessageID", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + messageColumns + ` FROM scored_messages WHERE message_id = $1`
	m, err := scanMessageRow(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if m == nil {
		return nil, false, nil
	}
	return m, true, nil
}

// Put inserts or updates a scored message (upsert on id).
func (s *Store) Put(ctx context.Context, m *prioritize.ScoredMessage) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	mentionedJSON, err := json.Marshal(m.MentionedUsers)
	if err != nil {
		return fmt.Errorf("marshal mentioned_users: %w", err)
	}
	adjustmentsJSON, err := json.Marshal(m.Adjustments)
	if err != nil {
		return fmt.Errorf("marshal adjustments: %w", err)
	}

	var scoredAt *time.Time
	if !m.ScoredAt.IsZero() {
		scoredAt = &m.ScoredAt
	}

	query := `INSERT INTO scored_messages (
		id, message_id, channel_id, channel_name, user_id, user_name, text, ts,
		thread_ts, is_thread_parent, reply_count, mentioned_users, has_files, reaction_count,
		status, score, reason, category, source, adjustments, model, created_at, scored_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	ON CONFLICT (id) DO UPDATE SET
		status      = EXCLUDED.status,
		score       = EXCLUDED.score,
		reason      = EXCLUDED.reason,
		category    = EXCLUDED.category,
		source      = EXCLUDED.source,
		adjustments = EXCLUDED.adjustments,
		model       = EXCLUDED.model,
		scored_at   = EXCLUDED.scored_at`

	_, err = s.pool.Exec(ctx, query,
		m.ID, m.MessageID, m.ChannelID, m.ChannelName, m.UserID, m.UserName, m.Text, m.Timestamp,
		m.ThreadTS, m.IsThreadParent, m.ReplyCount, mentionedJSON, m.HasFiles, m.ReactionCount,
		string(m.Status), m.Score, m.Reason, string(m.Category), string(m.Source), adjustmentsJSON,
		m.Model, m.CreatedAt, scoredAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert scored message: %w", err)
	}
	return nil
}

// List returns scored messages matching the filter, highest score first.
// Pending messages are excluded.
func (s *Store) List(ctx context.Context, f prioritize.ListFilter) ([]*prioritize.ScoredMessage, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + messageColumns + ` FROM scored_messages
		WHERE status = $1 AND score >= $2 AND ($3 = '' OR category = $3)
		ORDER BY score DESC, ts DESC
		LIMIT $4`

	rows, err := s.pool.Query(ctx, query,
		string(prioritize.StatusScored), f.MinScore, string(f.Category), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query scored messages: %w", err)
	}
	defer rows.Close()

	var out []*prioritize.ScoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate scored messages: %w", err)
	}
	return out, nil
}

// ListPending returns messages awaiting a score, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]*prioritize.ScoredMessage, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListPending", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + messageColumns + ` FROM scored_messages
		WHERE status = $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, string(prioritize.StatusPending))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query pending messages: %w", err)
	}
	defer rows.Close()

	var out []*prioritize.ScoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate pending messages: %w", err)
	}
	return out, nil
}

// Stats returns inbox summary counts.
func (s *Store) Stats(ctx context.Context) (*prioritize.InboxStats, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Stats", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	stats := &prioritize.InboxStats{
		ByCategory: make(map[prioritize.Category]int),
	}

	err := s.pool.QueryRow(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COALESCE(AVG(score) FILTER (WHERE status = $2), 0)
		FROM scored_messages`,
		string(prioritize.StatusPending), string(prioritize.StatusScored),
	).Scan(&stats.Total, &stats.Pending, &stats.AverageScore)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query stats: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM scored_messages WHERE status = $1 GROUP BY category`,
		string(prioritize.StatusScored))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		stats.ByCategory[prioritize.Category(category)] = count
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return stats, nil
}

// scanMessage scans one row from a multi-row query.
func scanMessage(rows pgx.Rows) (*prioritize.ScoredMessage, error) {
	m, err := scanRow(rows)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return m, nil
}

// scanMessageRow scans a single-row query result. Returns (nil, nil) when no
// row is found.
func scanMessageRow(row pgx.Row) (*prioritize.ScoredMessage, error) {
	m, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	return m, nil
}

func scanRow(row pgx.Row) (*prioritize.ScoredMessage, error) {
	var (
		m               prioritize.ScoredMessage
		status          string
		category        string
		source          string
		mentionedJSON   []byte
		adjustmentsJSON []byte
		scoredAt        *time.Time
	)

	err := row.Scan(
		&m.ID, &m.MessageID, &m.ChannelID, &m.ChannelName, &m.UserID, &m.UserName, &m.Text, &m.Timestamp,
		&m.ThreadTS, &m.IsThreadParent, &m.ReplyCount, &mentionedJSON, &m.HasFiles, &m.ReactionCount,
		&status, &m.Score, &m.Reason, &category, &source, &adjustmentsJSON, &m.Model, &m.CreatedAt, &scoredAt,
	)
	if err != nil {
		return nil, err
	}

	m.Status = prioritize.Status(status)
	m.Category = prioritize.Category(category)
	m.Source = prioritize.Source(source)

	if scoredAt != nil {
		m.ScoredAt = *scoredAt
	}
	if err := json.Unmarshal(mentionedJSON, &m.MentionedUsers); err != nil {
		return nil, fmt.Errorf("unmarshal mentioned_users: %w", err)
	}
	if err := json.Unmarshal(adjustmentsJSON, &m.Adjustments); err != nil {
		return nil, fmt.Errorf("unmarshal adjustments: %w", err)
	}
	return &m, nil
}
