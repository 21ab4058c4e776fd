package logger

import (
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/sirupsen/logrus"
)

// FieldComponent names the subsystem that wrote an entry
const FieldComponent = "component"

// New creates the process logger from the app settings. Production runs log
// JSON lines, everything else gets colored text.
func New(cfg *config.Config) *logrus.Logger {
	log := logrus.New()

	level := logrus.Level(cfg.App.LogLevel)
	if level > logrus.TraceLevel {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.App.Env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
		return log
	}
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	return log
}

// NewComponentLogger tags every entry written through the result with the
// component name. Fields added later never lose the tag.
func NewComponentLogger(log logrus.FieldLogger, component string) logrus.FieldLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField(FieldComponent, component)
}
