package kiosk

import (
	"errors"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
)

const (
	MsgNoCamera       = "No camera found"
	MsgScanTimeout    = "Scanning timed out. Please try again."
	MsgCameraFailed   = "Failed to start camera"
	MsgNotConnected   = "Database not connected"
	MsgInvalidCommand = "That action is not available right now."
)

// scanMessage maps a scan failure to operator text.
func scanMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrDevice):
		return MsgNoCamera
	case errors.Is(err, common.ErrTimeout):
		return MsgScanTimeout
	default:
		return MsgCameraFailed
	}
}
