package swap

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"omni-swap/pkg/types"
)

// ErrSwapNotFound is returned when no swap row exists for an id
var ErrSwapNotFound = errors.New("swap not found")

// ErrInvalidTransition is returned when a status update would move a swap
// backwards or out of a terminal state
var ErrInvalidTransition = errors.New("invalid swap status transition")

// Store persists swap records
type Store interface {
	Insert(ctx context.Context, s *types.Swap) error
	GetByID(ctx context.Context, id string) (*types.Swap, error)
	UpdateStatus(ctx context.Context, id string, status types.SwapStatus, txHash string, blockNumber int64, errMsg string) error
}

// SQLiteStore keeps swap records in a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS swaps (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			input_json TEXT NOT NULL,
			output_json TEXT NOT NULL,
			route_source TEXT NOT NULL,
			tx_hash TEXT,
			block_number INTEGER,
			fee_bps INTEGER,
			fee_amount TEXT,
			error_message TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create swaps table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert writes a new swap row
func (s *SQLiteStore) Insert(ctx context.Context, sw *types.Swap) error {
	input, err := json.Marshal(sw.Input)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	output, err := json.Marshal(sw.Output)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO swaps (id, status, input_json, output_json, route_source, tx_hash, block_number, fee_bps, fee_amount, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sw.ID, string(sw.Status), string(input), string(output), sw.RouteSource,
		sw.TxHash, sw.BlockNumber, sw.FeeBps, sw.FeeAmount, sw.ErrorMessage,
		sw.CreatedAt, sw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert swap: %w", err)
	}
	return nil
}

// GetByID loads a swap row
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*types.Swap, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, input_json, output_json, route_source, tx_hash, block_number, fee_bps, fee_amount, error_message, created_at, updated_at
		FROM swaps WHERE id = ?
	`, id)

	var sw types.Swap
	var status, inputJSON, outputJSON string
	err := row.Scan(&sw.ID, &status, &inputJSON, &outputJSON, &sw.RouteSource,
		&sw.TxHash, &sw.BlockNumber, &sw.FeeBps, &sw.FeeAmount, &sw.ErrorMessage,
		&sw.CreatedAt, &sw.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSwapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load swap: %w", err)
	}

	sw.Status = types.SwapStatus(status)
	if err := json.Unmarshal([]byte(inputJSON), &sw.Input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	if err := json.Unmarshal([]byte(outputJSON), &sw.Output); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return &sw, nil
}

// UpdateStatus moves a swap to a new status, enforcing the forward-only
// lifecycle. Empty txHash/errMsg and zero blockNumber leave the stored
// values untouched.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status types.SwapStatus, txHash string, blockNumber int64, errMsg string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != status && !current.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	if txHash == "" {
		txHash = current.TxHash
	}
	if blockNumber == 0 {
		blockNumber = current.BlockNumber
	}
	if errMsg == "" {
		errMsg = current.ErrorMessage
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE swaps SET status = ?, tx_hash = ?, block_number = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, string(status), txHash, blockNumber, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update swap: %w", err)
	}
	return nil
}
