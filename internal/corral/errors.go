package corral

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/kaze-mesh/kaze/internal/xerror"
)

var errConnClosed = errors.New("corral: connection closed")

var zeroTime time.Time

func deadlineFrom(d time.Duration) time.Time {
	return time.Now().Add(d)
}

func isAgain(err error) bool {
	return errors.Is(err, xerror.ErrAgain)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func translateReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return errConnClosed
	}
	return err
}
