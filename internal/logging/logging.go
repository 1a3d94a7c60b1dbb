// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup applies level and format to the standard logrus logger and
// directs output to out when it is not nil.
func Setup(level, format string, out io.Writer) error {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	var formatter log.Formatter
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		formatter = &log.TextFormatter{FullTimestamp: true}
	case FormatJSON:
		formatter = &log.JSONFormatter{}
	default:
		return fmt.Errorf("log format %q: expected %s or %s", format, FormatText, FormatJSON)
	}

	log.SetLevel(lvl)
	log.SetFormatter(formatter)
	if out != nil {
		log.SetOutput(out)
	}
	return nil
}
