package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/aivis/internal/crypt"
)

// TokenSalt returns the per-install salt used to derive the token sealing key,
// generating it on first use.
func TokenSalt(db *sql.DB) ([]byte, error) {
	var salt []byte
	err := db.QueryRow(`SELECT token_salt FROM install WHERE id = 1`).Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("read install salt: %w", err)
	}

	salt, err = crypt.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO install (id, token_salt) VALUES (1, ?)`, salt); err != nil {
		return nil, fmt.Errorf("insert install salt: %w", err)
	}
	// Another process may have won the insert.
	if err := db.QueryRow(`SELECT token_salt FROM install WHERE id = 1`).Scan(&salt); err != nil {
		return nil, fmt.Errorf("read install salt: %w", err)
	}
	return salt, nil
}
