package attributes

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridianpos/meridian/internal/shared"
)

func TestMapPgErrorSentinels(t *testing.T) {
	require.ErrorIs(t, mapPgError(&pgconn.PgError{Code: "23505"}), shared.ErrDuplicate)
	require.ErrorIs(t, mapPgError(&pgconn.PgError{Code: "23503"}), shared.ErrNotFound)
}

func TestMapPgErrorWrapsUnknownCodes(t *testing.T) {
	err := mapPgError(&pgconn.PgError{Code: "40001"})
	require.ErrorIs(t, err, shared.ErrPersistence)
	require.Contains(t, err.Error(), "40001")
}

func TestMapPgErrorPassesPlainErrors(t *testing.T) {
	plain := errors.New("broken pipe")
	require.Equal(t, plain, mapPgError(plain))
}
