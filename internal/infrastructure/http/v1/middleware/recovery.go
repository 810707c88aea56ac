// Package middleware provides HTTP middleware components.
package middleware

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"rxledger/internal/core/apperror"
	"rxledger/pkg/logger"
)

// Recovery converts panics into 500 responses without leaking internals
// to the client. A panic caused by the client going away mid-response
// is logged and dropped: the connection is dead, writing a body to it
// would just panic again.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if err, ok := rec.(error); ok && clientGone(err) {
				logger.Warn(c.Request.Context(), "client disconnected during response",
					"method", c.Request.Method,
					"route", c.FullPath(),
					"error", err,
				)
				c.Abort()
				return
			}

			logger.Error(c.Request.Context(), "panic recovered",
				"method", c.Request.Method,
				"route", c.FullPath(),
				"panic", rec,
				"stack", string(debug.Stack()),
			)

			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString("request_id")),
			)
			c.Abort()
		}()
		c.Next()
	}
}

// clientGone reports whether err is a broken pipe or reset connection
// from the peer.
func clientGone(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}
	return errors.Is(sysErr.Err, syscall.EPIPE) || errors.Is(sysErr.Err, syscall.ECONNRESET)
}
