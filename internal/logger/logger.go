package logger

import (
	"go.uber.org/zap"
)

// New builds the service logger: production JSON encoding, or a development
// console logger when debug is set.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
