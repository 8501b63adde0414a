package publish

import (
	"errors"

	"channel-publisher/core/index"
	"channel-publisher/core/reconcile"
	"channel-publisher/feature/channelsync"
	"channel-publisher/feature/upload"

	"github.com/gofiber/fiber/v2"
)

// ErrBackupDisabled is returned by Restore when no snapshot store is configured.
var ErrBackupDisabled = errors.New("index backup is not enabled")

// statusFor maps a command failure to an HTTP status.
func statusFor(err error) int {
	var syncErr *channelsync.SyncError
	switch {
	case errors.Is(err, index.ErrLocked):
		return fiber.StatusConflict
	case errors.Is(err, reconcile.ErrOffsetNotFound):
		return fiber.StatusBadRequest
	case errors.As(err, &syncErr), errors.Is(err, upload.ErrNoConnectivity):
		return fiber.StatusBadGateway
	}
	// Corrupt index, unreadable library and save failures.
	return fiber.StatusInternalServerError
}
