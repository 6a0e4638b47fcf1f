package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrNoQuote means no archived message matched the selection filters.
	ErrNoQuote = errors.New("no quote matches the filters")
	// ErrNotFound means the requested score row does not exist.
	ErrNotFound = errors.New("score not found")
)

// Quote is an archived channel message eligible for the guessing game.
type Quote struct {
	ID         int64
	AuthorID   int64
	AuthorName string
	Content    string
	PostedAt   time.Time
}

// ScoreRecord is one player's persistent game standing.
type ScoreRecord struct {
	UserID        int64
	Name          string
	CorrectCount  int
	TotalAttempts int
	Points        int
	CurrentStreak int
	BestStreak    int
}

// Accuracy returns correct/total as a percentage, 0 when no attempts.
func (r ScoreRecord) Accuracy() float64 {
	if r.TotalAttempts == 0 {
		return 0
	}
	return float64(r.CorrectCount) * 100.0 / float64(r.TotalAttempts)
}

// ArchivedMessage is one row scraped from the monitored channel.
type ArchivedMessage struct {
	MessageID int64
	ChannelID string
	UserID    int64
	UserName  string
	Content   string
	PostedAt  time.Time
}

type Store struct {
	db *sql.DB
}

func New(databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the bot's tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS archived_messages (
			message_id BIGINT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			user_id    BIGINT NOT NULL,
			user_name  TEXT NOT NULL,
			content    TEXT NOT NULL,
			posted_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS archived_messages_user_idx ON archived_messages (user_id, posted_at DESC)`,
		`CREATE TABLE IF NOT EXISTS quote_scores (
			user_id        BIGINT PRIMARY KEY,
			correct_count  INT NOT NULL DEFAULT 0,
			total_attempts INT NOT NULL DEFAULT 0,
			points         INT NOT NULL DEFAULT 0,
			current_streak INT NOT NULL DEFAULT 0,
			best_streak    INT NOT NULL DEFAULT 0
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RandomQuote selects uniformly among archived messages with content of at
// least minLength characters, restricted to allowedAuthors when non-empty.
func (s *Store) RandomQuote(ctx context.Context, allowedAuthors []int64, minLength int) (*Quote, error) {
	q := `SELECT message_id, user_id, user_name, content, posted_at
		FROM archived_messages
		WHERE char_length(content) >= $1`
	args := []any{minLength}
	if len(allowedAuthors) > 0 {
		q += ` AND user_id = ANY($2)`
		args = append(args, pq.Array(allowedAuthors))
	}
	q += ` ORDER BY random() LIMIT 1`

	var quote Quote
	err := s.db.QueryRowContext(ctx, q, args...).Scan(
		&quote.ID, &quote.AuthorID, &quote.AuthorName, &quote.Content, &quote.PostedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoQuote
	}
	if err != nil {
		return nil, fmt.Errorf("random quote: %w", err)
	}
	return &quote, nil
}

// UpsertScore applies one attempt's outcome to a player's row in a single
// atomic statement. Concurrent finalizations of different attempts never
// lose a total_attempts increment.
func (s *Store) UpsertScore(ctx context.Context, userID int64, correct bool, delta int) (*ScoreRecord, error) {
	correctInc := 0
	if correct {
		correctInc = 1
	}
	q := `INSERT INTO quote_scores (user_id, correct_count, total_attempts, points, current_streak, best_streak)
		VALUES ($1, $2, 1, $3, $2, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			correct_count  = quote_scores.correct_count + EXCLUDED.correct_count,
			total_attempts = quote_scores.total_attempts + 1,
			points         = quote_scores.points + EXCLUDED.points,
			current_streak = CASE WHEN EXCLUDED.correct_count > 0 THEN quote_scores.current_streak + 1 ELSE 0 END,
			best_streak    = CASE WHEN EXCLUDED.correct_count > 0
				THEN GREATEST(quote_scores.best_streak, quote_scores.current_streak + 1)
				ELSE quote_scores.best_streak END
		RETURNING user_id, correct_count, total_attempts, points, current_streak, best_streak`

	var rec ScoreRecord
	err := s.db.QueryRowContext(ctx, q, userID, correctInc, delta).Scan(
		&rec.UserID, &rec.CorrectCount, &rec.TotalAttempts, &rec.Points, &rec.CurrentStreak, &rec.BestStreak,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert score: %w", err)
	}
	return &rec, nil
}

func (s *Store) Score(ctx context.Context, userID int64) (*ScoreRecord, error) {
	q := `SELECT user_id, correct_count, total_attempts, points, current_streak, best_streak
		FROM quote_scores WHERE user_id = $1`
	var rec ScoreRecord
	err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&rec.UserID, &rec.CorrectCount, &rec.TotalAttempts, &rec.Points, &rec.CurrentStreak, &rec.BestStreak,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch score: %w", err)
	}
	return &rec, nil
}

// TopScores returns up to limit rows ordered by points, ties broken by
// accuracy. Display names come from each player's latest archived message.
func (s *Store) TopScores(ctx context.Context, limit int) ([]ScoreRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `WITH latest_names AS (
			SELECT DISTINCT ON (user_id) user_id, user_name
			FROM archived_messages
			ORDER BY user_id, posted_at DESC
		)
		SELECT qs.user_id,
			COALESCE(ln.user_name, qs.user_id::text),
			qs.correct_count, qs.total_attempts, qs.points, qs.current_streak, qs.best_streak
		FROM quote_scores qs
		LEFT JOIN latest_names ln ON ln.user_id = qs.user_id
		ORDER BY qs.points DESC,
			(qs.correct_count::float8 / NULLIF(qs.total_attempts, 0)) DESC NULLS LAST
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var rec ScoreRecord
		if err := rows.Scan(&rec.UserID, &rec.Name, &rec.CorrectCount, &rec.TotalAttempts,
			&rec.Points, &rec.CurrentStreak, &rec.BestStreak); err != nil {
			return nil, fmt.Errorf("top scores scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top scores rows: %w", err)
	}
	return out, nil
}

// InsertMessage archives one channel message. Replays of the same message
// are ignored so the scraper can overlap date ranges safely.
func (s *Store) InsertMessage(ctx context.Context, m *ArchivedMessage) error {
	q := `INSERT INTO archived_messages (message_id, channel_id, user_id, user_name, content, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q,
		m.MessageID, m.ChannelID, m.UserID, m.UserName, m.Content, m.PostedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
