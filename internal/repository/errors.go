package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrLocationNotFound = errors.New("location not found")
	ErrGameNotOpen      = errors.New("game is not open")
	ErrGameTerminal     = errors.New("game is cancelled or expired")
	ErrAlreadyJoined    = errors.New("user already joined")
	ErrCapacityExceeded = errors.New("game capacity exceeded")
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n > 0, nil
}
