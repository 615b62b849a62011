package ledgerx

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInternalServer      = errors.New("internal server error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransientConflict means optimistic retries ran out. Nothing was
	// committed, so the caller may retry the whole operation.
	ErrTransientConflict  = errors.New("too many concurrent updates, try again")
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrVersionConflict is the store's compare-and-swap failure signal.
	ErrVersionConflict = errors.New("account version conflict")
)

type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

type ErrNotFound struct {
	ID snowflake.ID `json:"id"`
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("account not found for id: %s", e.ID)
}
