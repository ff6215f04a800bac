package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("send: %w", NewPersistence("store message", stderrors.New("disk full")))

	req.Equal(KindPersistence, KindOf(err))
	req.Equal("store message", MessageOf(err))
	req.Contains(err.Error(), "disk full")
}

func TestKindOf_Unclassified(t *testing.T) {
	req := require.New(t)

	err := stderrors.New("boom")

	req.Equal(KindInternal, KindOf(err))
	req.Equal("boom", MessageOf(err))
}

func TestSentinel_IsAfterWrapping(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("handle inbound: %w", ErrContentTooLong)

	req.ErrorIs(err, ErrContentTooLong)
	req.NotErrorIs(err, ErrContentRequired)
}
