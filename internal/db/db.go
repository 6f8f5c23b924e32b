package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// The users table belongs to the auth service; it is created here only so that a fresh
// development database has something to join against.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            full_name TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
            id TEXT PRIMARY KEY,
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
            message TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_pending_pair
            ON friend_requests (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id))
            WHERE status = 'pending';`,
	`CREATE INDEX IF NOT EXISTS friend_requests_receiver ON friend_requests (receiver_id, status, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS friend_requests_sender ON friend_requests (sender_id, status, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS friendships (
            id TEXT PRIMARY KEY,
            user_a TEXT NOT NULL,
            user_b TEXT NOT NULL,
            last_interaction_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(user_a, user_b)
        );`,
	`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL CHECK (kind IN ('direct', 'group')),
            participants TEXT[] NOT NULL,
            direct_key TEXT UNIQUE,
            last_message_id TEXT,
            last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS conversations_participants ON conversations USING GIN (participants);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            conversation_id TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            type TEXT NOT NULL,
            content TEXT NOT NULL DEFAULT '',
            attachments JSONB NOT NULL DEFAULT '[]',
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            is_recalled BOOLEAN NOT NULL DEFAULT FALSE,
            read_at TIMESTAMPTZ,
            forwarded_from TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_created ON messages (conversation_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS messages_unread ON messages (receiver_id, conversation_id) WHERE read_at IS NULL;`,
	`CREATE TABLE IF NOT EXISTS groups (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            conversation_id TEXT NOT NULL UNIQUE,
            admin_id TEXT NOT NULL,
            members TEXT[] NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS groups_members ON groups USING GIN (members);`,
}

func runMigrations(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("database migrations applied")
	return nil
}
