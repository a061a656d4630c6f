// Package telemetry builds the process logger and the optional trace
// exporter.
package telemetry

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger returns a JSON production logger, or a console logger at debug
// level when dev is set.
func NewLogger(dev bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
