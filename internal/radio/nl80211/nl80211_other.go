//go:build !linux

package nl80211

import (
	"time"

	"go.uber.org/zap"
)

// Open always fails off Linux.
func Open(_ string, _ time.Duration, _ *zap.Logger) (*Radio, error) {
	return nil, ErrUnsupported
}
