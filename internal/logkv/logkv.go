// Package logkv is the structured logging façade used by the storage
// engine, the network front end, and the CLI binaries. It wraps logrus the
// way the rest of the retrieved LSM/KV corpus wires up a logging library
// instead of printf-ing warnings inline.
package logkv

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// EnvLevel is the environment variable AtlasKV reads for log verbosity.
// It does not alter storage semantics, only log output.
const EnvLevel = "ATLASKV_LOG_LEVEL"

var (
	once sync.Once
	base *logrus.Logger
)

// Logger returns the process-wide logrus instance, initialized lazily from
// ATLASKV_LOG_LEVEL (trace|debug|info|warn|error; default info).
func Logger() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(levelFromEnv())
	})
	return base
}

func levelFromEnv() logrus.Level {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLevel)))
	lvl, err := logrus.ParseLevel(v)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// With is a convenience wrapper around Logger().WithFields for the common
// case of tagging a log line with a subsystem name.
func With(component string) *logrus.Entry {
	return Logger().WithField("component", component)
}
