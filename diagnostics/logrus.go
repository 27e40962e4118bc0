package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options describes how a logrus logger is assembled for a sink.
type Options struct {
	// Level is the minimum logrus level name (debug, info, warn, error).
	Level string

	// Format is either "text" or "json".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer

	// Colors forces colored text output on or off.
	Colors bool
}

func NewLogger(options Options) (*logrus.Logger, error) {
	logger := logrus.New()

	output := options.Output
	if output == nil {
		output = os.Stderr
	}
	logger.SetOutput(output)

	if options.Level != "" {
		level, err := logrus.ParseLevel(options.Level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}

	switch options.Format {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case FormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:      options.Colors,
			DisableColors:    !options.Colors,
			DisableTimestamp: true,
		})
	default:
		return nil, fmt.Errorf("unsupported log format: %s", options.Format)
	}

	return logger, nil
}

// LogrusSink writes events through a logrus logger.  The event code is
// attached as the "code" field, alongside the event's own fields.
type LogrusSink struct {
	logger *logrus.Logger
}

func NewLogrusSink(logger *logrus.Logger) *LogrusSink {
	return &LogrusSink{
		logger: logger,
	}
}

func (sink *LogrusSink) Emit(event Event) {
	fields := logrus.Fields{}
	for key, value := range event.Fields {
		fields[key] = value
	}
	fields["code"] = event.Code.String()

	sink.logger.WithFields(fields).Log(LogrusLevel(event.Level), event.Message)
}

func LogrusLevel(level Level) logrus.Level {
	switch level {
	case Debug:
		return logrus.DebugLevel
	case Info:
		return logrus.InfoLevel
	case Warning:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
