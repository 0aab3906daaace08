package logparse

import (
	"strings"

	"github.com/keepwatching/logtail/internal/model"
)

// NormalizeSeverity converts the many spellings emitted by winston, pino,
// and nginx into consistent all caps short forms. Unknown input yields "".
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC", "SILLY", "VERBOSE":
		return "TRACE"
	case "DEBUG", "DEBU", "DBG", "DEB":
		return "DEBUG"
	case "INFO", "INFORMATION", "INF", "HTTP", "NOTICE":
		return "INFO"
	case "WARN", "WARNING", "WRNG", "WRN":
		return "WARN"
	case "ERROR", "ERR", "ERRO":
		return "ERROR"
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "ALERT", "EMERG":
		return "FATAL"
	case "PANIC", "PNC":
		return "FATAL"
	}
	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "INFO":
			return "INFO"
		case "WARN":
			return "WARN"
		case "ERRO":
			return "ERROR"
		case "DEBU":
			return "DEBUG"
		case "TRAC":
			return "TRACE"
		case "FATA", "CRIT":
			return "FATAL"
		}
	}
	return ""
}

// ParseLevel folds a severity string into one of the three record levels.
// Trace and debug collapse to info; fatal collapses to error.
func ParseLevel(s string) (model.Level, bool) {
	switch NormalizeSeverity(s) {
	case "TRACE", "DEBUG", "INFO":
		return model.LevelInfo, true
	case "WARN":
		return model.LevelWarn, true
	case "ERROR", "FATAL":
		return model.LevelError, true
	}
	return "", false
}

// PinoLevel converts pino/bunyan numeric levels to a record level.
func PinoLevel(level int) model.Level {
	switch {
	case level < 40:
		return model.LevelInfo
	case level < 50:
		return model.LevelWarn
	default:
		return model.LevelError
	}
}

// StatusLevel derives a level from an HTTP status code, the way the nginx
// access log is classified: 5xx is error, 4xx is warn.
func StatusLevel(status int) model.Level {
	switch {
	case status >= 500:
		return model.LevelError
	case status >= 400:
		return model.LevelWarn
	default:
		return model.LevelInfo
	}
}
