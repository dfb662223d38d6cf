package server

import (
	"captains-log/config"
	"captains-log/constant"
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger returns a context carrying the service logger. When a log
// file is configured, output is also written to a rotating file that the
// returned closer releases.
func SetupLogger(cfg *config.Config) (context.Context, io.Closer) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if cfg.Log.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(os.Stdout, file)
		closer = file
	}

	logger := zerolog.New(out).With().Timestamp().Str("service", "captains-log").Logger()
	return logger.WithContext(context.Background()), closer
}
