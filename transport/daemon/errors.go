package daemon

import (
	"errors"
	"fmt"

	"github.com/mtraver/ads101x"
)

// Result codes returned by the pigpio daemon, and the socket-level codes of its client library.
const (
	piBadUserGPIO    = -2
	piNoHandle       = -24
	piBadHandle      = -25
	piI2COpenFailed  = -71
	piBadI2CBus      = -74
	piBadI2CAddr     = -75
	piBadFlags       = -77
	piBadParam       = -81
	piI2CWriteFailed = -82
	piI2CReadFailed  = -83
	piNoMemory       = -125

	pigifBadSend      = -2000
	pigifBadRecv      = -2001
	pigifBadConnect   = -2003
	pigifBadNoIB      = -2005
	pigifNotifyFailed = -2009
	pigifUnconnected  = -2011
)

var errorMessages = map[int32]string{
	piBadUserGPIO:     "invalid gpio",
	piNoHandle:        "no i2c handle",
	piBadHandle:       "invalid i2c handle",
	piI2COpenFailed:   "i2c open failed",
	piBadI2CBus:       "invalid i2c bus specified",
	piBadI2CAddr:      "invalid i2c slave address specified",
	piBadFlags:        "invalid i2c open flags specified",
	piBadParam:        "invalid parameter",
	piI2CWriteFailed:  "i2c write failed",
	piI2CReadFailed:   "i2c read failed",
	piNoMemory:        "no memory for notification",
	pigifBadSend:      "failed to send to pigpiod",
	pigifBadRecv:      "failed to receive from pigpiod",
	pigifBadConnect:   "failed to connect to pigpiod",
	pigifBadNoIB:      "failed to open notification in band",
	pigifNotifyFailed: "failed to start notifications",
	pigifUnconnected:  "not connected to pigpiod",
}

// ErrDaemon is wrapped by every error the daemon reports.
var ErrDaemon = errors.New("pigpio error")

func message(code int32) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return fmt.Sprint(code)
}

// newError returns the TransportError for a negative result code.
func newError(op string, code int32) *ads101x.TransportError {
	return &ads101x.TransportError{
		Op:   op,
		Code: int(code),
		Err:  fmt.Errorf("%w: %s", ErrDaemon, message(code)),
	}
}

// socketError is a failure talking to the daemon rather than one reported by it.
func socketError(op string, code int32, err error) *ads101x.TransportError {
	return &ads101x.TransportError{
		Op:   op,
		Code: int(code),
		Err:  fmt.Errorf("%s: %w", message(code), err),
	}
}
