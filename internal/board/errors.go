package board

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrCardNotFound      = errors.New("card not found")
	ErrBoardNotFound     = errors.New("board not found")
	ErrColumnNotFound    = errors.New("column not found")
	ErrSelfGroup         = errors.New("card dropped on itself")
	ErrVoteRejected      = errors.New("vote rejected")
	ErrNegativeTally     = errors.New("vote tally would become negative")
	ErrInvalidTransition = errors.New("invalid grouping transition")
	ErrValueType         = errors.New("unexpected value type for key")
)

// StoreError reports a rejected write or erase against the backing store.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func write(ctx context.Context, st Store, key Key, value any) error {
	if err := st.Write(ctx, key, value); err != nil {
		return &StoreError{Op: "write", Path: key.Path(), Err: err}
	}
	return nil
}

func erase(ctx context.Context, st Store, key Key) error {
	if err := st.Erase(ctx, key); err != nil {
		return &StoreError{Op: "erase", Path: key.Path(), Err: err}
	}
	return nil
}
