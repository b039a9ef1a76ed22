// Copyright (c) 2026 The arpalm Authors
// SPDX-License-Identifier: MIT

package arpalm

import "go.uber.org/zap"

// zapLogger adapts a *zap.Logger to the Logger interface. It is the default
// production logger; construct with NewZapLogger or wrap an existing
// *zap.Logger owned by the host application.
type zapLogger struct {
	z *zap.SugaredLogger
}

// NewZapLogger returns a Logger backed by z. Passing nil uses
// zap.NewNop(), matching NopLogger's behaviour but going through the same
// call path as production code (useful for benchmarks that want realistic
// overhead without actual output).
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return zapLogger{z: z.Sugar()}
}

func (l zapLogger) Log(level Level, format string, args ...any) {
	switch level {
	case LevelWarning:
		l.z.Warnf(format, args...)
	case LevelError:
		l.z.Errorf(format, args...)
	case LevelData:
		l.z.Infof("data: "+format, args...)
	default:
		l.z.Infof(format, args...)
	}
}
