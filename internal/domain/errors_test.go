package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	req := require.New(t)

	req.Equal("", Code(nil))
	req.Equal("session_closed", Code(fmt.Errorf("post: %w", ErrSessionClosed)))
	req.Equal("call_not_found", Code(ErrCallNotFound))
	req.Equal("invalid_call_state", Code(fmt.Errorf("accept: %w", ErrInvalidCallState)))
	req.Equal("persistence_failure", Code(fmt.Errorf("insert: %w", ErrPersistenceFailure)))
	req.Equal("internal", Code(fmt.Errorf("boom")))

	// call not found is a flavour of invalid call state
	req.ErrorIs(ErrCallNotFound, ErrInvalidCallState)
}
