package devicedb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB 以设备路径为主键的 first-seen 台账
// 监控进程只写不查,唯一被消费的信息是"这台硬件是否第一次出现"
type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open device ledger: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		path       TEXT PRIMARY KEY,
		first_seen DATETIME NOT NULL,
		last_seen  DATETIME NOT NULL,
		arrivals   INTEGER  NOT NULL DEFAULT 1
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create device ledger schema: %w", err)
	}
	return &DB{db: db}, nil
}

// MarkSeen 记录一次设备到达,返回该设备是否首次出现
func (d *DB) MarkSeen(devPath string, at time.Time) (bool, error) {
	var exists int
	err := d.db.QueryRow("SELECT 1 FROM devices WHERE path = ?", devPath).Scan(&exists)
	if err == sql.ErrNoRows {
		if _, err := d.db.Exec(
			"INSERT INTO devices(path, first_seen, last_seen) VALUES (?, ?, ?)",
			devPath, at, at,
		); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}
	_, err = d.db.Exec(
		"UPDATE devices SET last_seen = ?, arrivals = arrivals + 1 WHERE path = ?",
		at, devPath,
	)
	return false, err
}

func (d *DB) Close() error {
	return d.db.Close()
}
