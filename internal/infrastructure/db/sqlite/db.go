package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Schema matches databases written by earlier deployments; columns must not
// be renamed. last_seen is additive and defaults to expire-era values for
// rows migrated from older files.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	name      CHAR(40) PRIMARY KEY,
	username  VARCHAR(32),
	expire    INTEGER,
	last_seen INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS users (
	username              VARCHAR(32) PRIMARY KEY,
	creation_time         INTEGER,
	ip                    VARCHAR(46),
	email                 VARCHAR(100),
	pwhash                VARCHAR(42),
	pwsalt                VARCHAR(42),
	pwchange_time         INTEGER DEFAULT 0,
	token                 VARCHAR(42),
	verified              INTEGER DEFAULT 0,
	token_time            INTEGER DEFAULT 0,
	last_forgot_validated INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS email_queue (
	username VARCHAR(32) PRIMARY KEY,
	content  BLOB
);
`

// Open opens (creating if needed) the session database and applies the
// schema. The subsystem is single-process; one writer connection avoids
// SQLITE_BUSY churn.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init session db schema: %w", err)
	}
	return db, nil
}
