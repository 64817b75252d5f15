// internal/db/db.go
package db

import (
    "database/sql"
    "fmt"
    _ "github.com/lib/pq"
    "log"
    "os"
)

var DB *sql.DB

func Init() {
    user := os.Getenv("DB_USER")
    pass := os.Getenv("DB_PASSWORD")
    host := os.Getenv("DB_HOST")
    port := os.Getenv("DB_PORT")
    name := os.Getenv("DB_NAME")

    dsn := fmt.Sprintf(
        "postgres://%s:%s@%s:%s/%s?sslmode=disable",
        user, pass, host, port, name,
    )

    var err error
    DB, err = sql.Open("postgres", dsn)
    if err != nil {
        log.Fatalf("failed to connect to DB: %v", err)
    }

    if err = DB.Ping(); err != nil {
        log.Fatalf("failed to ping DB: %v", err)
    }

    log.Println("✅ Connected to database")
}

// Migrate creates the relay's tables. The uniqueness constraints here are
// load-bearing: concurrent first-contact webhooks, duplicate event claims
// and duplicate notification fanout are all collapsed by the database,
// not by in-process locking.
func Migrate() {
    if _, err := DB.Exec(schema); err != nil {
        log.Fatalf("failed to migrate schema: %v", err)
    }
    log.Println("✅ Schema up to date")
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id         UUID PRIMARY KEY,
    email      TEXT NOT NULL UNIQUE,
    full_name  TEXT NOT NULL DEFAULT '',
    role       TEXT NOT NULL,
    is_active  BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS customers (
    id               UUID PRIMARY KEY,
    phone            TEXT NOT NULL UNIQUE,
    name             TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'unassigned',
    assigned_user_id UUID REFERENCES users(id),
    needs_resync     BOOLEAN NOT NULL DEFAULT FALSE,
    first_contact_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_message_at  TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_customers_status_assignee ON customers (status, assigned_user_id);
CREATE INDEX IF NOT EXISTS idx_customers_needs_resync ON customers (needs_resync) WHERE needs_resync;

CREATE TABLE IF NOT EXISTS conversations (
    id          UUID PRIMARY KEY,
    customer_id UUID NOT NULL REFERENCES customers(id),
    status      TEXT NOT NULL DEFAULT 'active',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_conversations_active
    ON conversations (customer_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS messages (
    id                  UUID PRIMARY KEY,
    conversation_id     UUID NOT NULL REFERENCES conversations(id),
    sender_type         TEXT NOT NULL,
    sender_user_id      UUID,
    sender_customer_id  UUID,
    type                TEXT NOT NULL DEFAULT 'text',
    content             TEXT NOT NULL DEFAULT '',
    file_url            TEXT NOT NULL DEFAULT '',
    provider_message_id TEXT,
    status              TEXT NOT NULL DEFAULT 'pending',
    last_error          TEXT NOT NULL DEFAULT '',
    provider_ts         TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);

CREATE TABLE IF NOT EXISTS internal_comments (
    id              UUID PRIMARY KEY,
    conversation_id UUID NOT NULL REFERENCES conversations(id),
    author_id       UUID NOT NULL REFERENCES users(id),
    content         TEXT NOT NULL,
    tagged_user_ids UUID[] NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS assignment_events (
    id               UUID PRIMARY KEY,
    customer_id      UUID NOT NULL REFERENCES customers(id),
    prev_assignee_id UUID,
    new_assignee_id  UUID,
    actor_id         UUID,
    reason           TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_assignment_events_customer ON assignment_events (customer_id, created_at);

CREATE TABLE IF NOT EXISTS notifications (
    id           UUID PRIMARY KEY,
    recipient_id UUID NOT NULL REFERENCES users(id),
    kind         TEXT NOT NULL,
    event_id     TEXT NOT NULL,
    customer_id  UUID,
    payload_ref  TEXT NOT NULL DEFAULT '',
    read         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (event_id, recipient_id)
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient_id, read, created_at);

CREATE TABLE IF NOT EXISTS idempotency_records (
    event_id   TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    digest     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
