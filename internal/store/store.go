package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maeumlab/emotion-letterbox/backend/internal/model/emotion"
	lettermodel "github.com/maeumlab/emotion-letterbox/backend/internal/model/letter"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout keeps millisecond precision in a form SQLite's date()
// functions understand.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store persists emotion logs and letters in SQLite. Insert-or-fail
// semantics keyed by the caller-generated ids.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the letterbox database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveLog 写入一条情绪日记。重复 id 直接报错。
func (s *Store) SaveLog(ctx context.Context, log emotion.Log) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO emotion_logs (id, text, emotion_type, emotion_intensity, emotion_timestamp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.Text,
		string(log.Emotion.Type),
		log.Emotion.Intensity,
		log.Emotion.Timestamp.UTC().Format(timeLayout),
		log.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert emotion log %s: %w", log.ID, err)
	}
	return nil
}

// SaveLetter 写入一封信件，音乐推荐序列化为 JSON 列。
func (s *Store) SaveLetter(ctx context.Context, l lettermodel.Letter) error {
	musicData := sql.NullString{}
	if l.Music != nil {
		encoded, err := json.Marshal(l.Music)
		if err != nil {
			return fmt.Errorf("encode music track for letter %s: %w", l.ID, err)
		}
		musicData = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO letters (id, content, emotion_type, emotion_intensity, emotion_timestamp, music_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		l.Content,
		string(l.Emotion.Type),
		l.Emotion.Intensity,
		l.Emotion.Timestamp.UTC().Format(timeLayout),
		musicData,
		l.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert letter %s: %w", l.ID, err)
	}
	return nil
}

// ListLogs 返回全部情绪日记，按时间倒序。
func (s *Store) ListLogs(ctx context.Context) ([]emotion.Log, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, emotion_type, emotion_intensity, emotion_timestamp, created_at
		 FROM emotion_logs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query emotion logs: %w", err)
	}
	defer rows.Close()

	logs := make([]emotion.Log, 0, 16)
	for rows.Next() {
		var (
			entry        emotion.Log
			kind         string
			intensity    int
			timestampRaw string
			createdRaw   string
		)
		if err := rows.Scan(&entry.ID, &entry.Text, &kind, &intensity, &timestampRaw, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan emotion log: %w", err)
		}

		timestamp, err := time.Parse(timeLayout, timestampRaw)
		if err != nil {
			return nil, fmt.Errorf("parse emotion timestamp: %w", err)
		}
		createdAt, err := time.Parse(timeLayout, createdRaw)
		if err != nil {
			return nil, fmt.Errorf("parse log created_at: %w", err)
		}

		entry.Emotion = emotion.New(emotion.Kind(kind), intensity, timestamp)
		entry.CreatedAt = createdAt
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

// RecentLetters 返回最近的 limit 封信件，按时间倒序。
func (s *Store) RecentLetters(ctx context.Context, limit int) ([]lettermodel.Letter, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, emotion_type, emotion_intensity, emotion_timestamp, music_data, created_at
		 FROM letters ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query letters: %w", err)
	}
	defer rows.Close()

	letters := make([]lettermodel.Letter, 0, limit)
	for rows.Next() {
		var (
			l            lettermodel.Letter
			kind         string
			intensity    int
			timestampRaw string
			musicData    sql.NullString
			createdRaw   string
		)
		if err := rows.Scan(&l.ID, &l.Content, &kind, &intensity, &timestampRaw, &musicData, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}

		timestamp, err := time.Parse(timeLayout, timestampRaw)
		if err != nil {
			return nil, fmt.Errorf("parse letter emotion timestamp: %w", err)
		}
		createdAt, err := time.Parse(timeLayout, createdRaw)
		if err != nil {
			return nil, fmt.Errorf("parse letter created_at: %w", err)
		}

		if musicData.Valid {
			track := &lettermodel.MusicTrack{}
			if err := json.Unmarshal([]byte(musicData.String), track); err != nil {
				return nil, fmt.Errorf("decode music track for letter %s: %w", l.ID, err)
			}
			l.Music = track
		}

		l.Emotion = emotion.New(emotion.Kind(kind), intensity, timestamp)
		l.CreatedAt = createdAt
		letters = append(letters, l)
	}

	return letters, rows.Err()
}

// TrendPoint 是趋势图中一天的平均强度。
type TrendPoint struct {
	Date      string  `json:"date"`
	Intensity float64 `json:"intensity"`
}

// Trend 按天聚合平均情绪强度，供前端绘制趋势图。
func (s *Store) Trend(ctx context.Context) ([]TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(created_at) AS day, AVG(emotion_intensity)
		 FROM emotion_logs GROUP BY day ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("query emotion trend: %w", err)
	}
	defer rows.Close()

	points := make([]TrendPoint, 0, 8)
	for rows.Next() {
		var point TrendPoint
		if err := rows.Scan(&point.Date, &point.Intensity); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		points = append(points, point)
	}

	return points, rows.Err()
}

// AverageIntensity 返回全部日记的平均强度，没有数据时为 0。
func (s *Store) AverageIntensity(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(emotion_intensity) FROM emotion_logs`).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("query average intensity: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}
