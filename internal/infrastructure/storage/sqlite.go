package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clemsytoff/tradesarace/internal/domain"
)

// SQLiteStore implements domain.UserRepository and domain.StateRepository.
// Wallet and positions are stored as JSON columns on the user row, one row
// per user; position timestamps serialize as RFC 3339 strings.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			wallet_json TEXT,
			positions_json TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UserRepository implementation

func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	wallet, err := json.Marshal(domain.DefaultWallet())
	if err != nil {
		return err
	}
	query := `INSERT INTO users (id, name, email, password_hash, wallet_json, positions_json, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, string(wallet), "[]", user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, query, arg string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, query, arg)

	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// StateRepository implementation

func (s *SQLiteStore) LoadState(ctx context.Context, userID string) (domain.Wallet, []*domain.Position, error) {
	query := `SELECT wallet_json, positions_json FROM users WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, userID)

	var walletJSON, positionsJSON sql.NullString
	err := row.Scan(&walletJSON, &positionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, nil, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Wallet{}, nil, err
	}

	wallet := decodeWallet(walletJSON)
	positions := decodePositions(positionsJSON)
	return wallet, positions, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, userID string, wallet domain.Wallet, positions []*domain.Position) error {
	walletJSON, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	if positions == nil {
		positions = []*domain.Position{}
	}
	positionsJSON, err := json.Marshal(positions)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET wallet_json = ?, positions_json = ? WHERE id = ?`,
		string(walletJSON), string(positionsJSON), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) ListWallets(ctx context.Context) ([]domain.WalletEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, wallet_json FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WalletEntry
	for rows.Next() {
		var e domain.WalletEntry
		var walletJSON sql.NullString
		if err := rows.Scan(&e.UserID, &e.Name, &walletJSON); err != nil {
			return nil, err
		}
		e.Wallet = decodeWallet(walletJSON)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// decodeWallet falls back to the default wallet on a missing or corrupt
// column, mirroring the load behavior for malformed records.
func decodeWallet(raw sql.NullString) domain.Wallet {
	if !raw.Valid || raw.String == "" {
		return domain.DefaultWallet()
	}
	var w domain.Wallet
	if err := json.Unmarshal([]byte(raw.String), &w); err != nil {
		return domain.DefaultWallet()
	}
	return w
}

// decodePositions drops records the engine must not see: bad leverage,
// non-positive amount or price, duplicate ids. Corrupt JSON yields an empty
// open set rather than an error.
func decodePositions(raw sql.NullString) []*domain.Position {
	if !raw.Valid || raw.String == "" {
		return []*domain.Position{}
	}
	var positions []*domain.Position
	if err := json.Unmarshal([]byte(raw.String), &positions); err != nil {
		return []*domain.Position{}
	}
	return domain.SanitizePositions(positions)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
