package database

import (
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// transientAttempts bounds how often a read is retried after a connection
// failure. Business errors are never retried.
const transientAttempts = 2

// IsTransient reports whether err looks like a connection-level failure worth
// one more attempt against the pool.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, gorm.ErrInvalidDB) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// WithRetry runs fn and retries it once per remaining attempt while the
// returned error stays transient.
func WithRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= transientAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
	}
	return err
}
