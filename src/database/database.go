package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/cambitax/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database schema", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database schema for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		is_email_verified BOOLEAN DEFAULT FALSE,
		email_verification_token TEXT,
		email_verification_token_expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS capital_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount_usd REAL NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS processed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		close_date TEXT NOT NULL,
		month_key TEXT NOT NULL,
		symbol TEXT,
		result_usd REAL,
		result_brl REAL,
		commission TEXT,
		swap TEXT,
		extra TEXT,
		platform TEXT,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_capital_transactions_user ON capital_transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_processed_trades_user_month ON processed_trades(user_id, month_key);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	migrateProcessedTrades()

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateProcessedTrades backfills the platform column for databases created
// before it existed.
func migrateProcessedTrades() {
	rows, err := DB.Query("PRAGMA table_info(processed_trades)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for processed_trades", "error", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for processed_trades", "error", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for processed_trades", "error", err)
		}
		return
	}

	if !columnExists["platform"] {
		if _, err := DB.Exec("ALTER TABLE processed_trades ADD COLUMN platform TEXT"); err != nil {
			if logger.L != nil {
				logger.L.Error("Error adding 'platform' column to processed_trades", "error", err)
			}
		} else if logger.L != nil {
			logger.L.Info("Added 'platform' column to processed_trades table")
		}
	}
}
