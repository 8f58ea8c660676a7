package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

func lookup(key string, log *logger.Logger) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	if !ok || val == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "env_var", key)
		}
		return "", false
	}
	return val, true
}

func String(key, def string, log *logger.Logger) string {
	v, ok := lookup(key, log)
	if !ok {
		return def
	}
	return v
}

func Int(key string, def int, log *logger.Logger) int {
	v, ok := lookup(key, log)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "env_var", key, "provided", v, "error", err)
		}
		return def
	}
	return i
}

func Float(key string, def float64, log *logger.Logger) float64 {
	v, ok := lookup(key, log)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as float, using default", "env_var", key, "provided", v, "error", err)
		}
		return def
	}
	return f
}

func Bool(key string, def bool, log *logger.Logger) bool {
	v, ok := lookup(key, log)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// Duration accepts Go duration strings ("90s") or a bare integer number of seconds.
func Duration(key string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(key, log)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if log != nil {
		log.Debug("Environment variable could not be parsed as duration, using default", "env_var", key, "provided", v)
	}
	return def
}
