package dbx

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation    = "23505"
	codeCannotConnectNow   = "57P03"
	codeAdminShutdown      = "57P01"
	codeCrashShutdown      = "57P02"
	classConnectionFailure = "08"
)

// Classify maps driver-level failures onto sentinel errors while keeping the
// original error in the chain:
//   - connection-class failures become common.ErrUnavailable
//   - unique violations become common.ErrorAlreadyExists
//
// Anything else is returned unchanged. Classify(nil) is nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%w: %w", common.ErrorAlreadyExists, err)
		case strings.HasPrefix(pgErr.Code, classConnectionFailure),
			pgErr.Code == codeCannotConnectNow,
			pgErr.Code == codeAdminShutdown,
			pgErr.Code == codeCrashShutdown:
			return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	return err
}
