package loopclosure

import (
	"io"
	"log/slog"
	"os"

	"github.com/roboswarm/loopclosure/vlc"
)

// Logger wraps slog.Logger with loop-closure specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

type loggerConfig struct {
	out   io.Writer
	level slog.Level
	json  bool
}

// LoggerOption configures NewLogger.
type LoggerOption func(*loggerConfig)

// WithLogWriter directs log output to w instead of stderr.
func WithLogWriter(w io.Writer) LoggerOption {
	return func(c *loggerConfig) {
		c.out = w
	}
}

// WithLevel sets the minimum record level.
func WithLevel(level slog.Level) LoggerOption {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithJSON emits JSON records instead of text.
func WithJSON() LoggerOption {
	return func(c *loggerConfig) {
		c.json = true
	}
}

// NewLogger builds the service logger. The default writes text records at
// Info level to stderr; options select the writer, level and format.
func NewLogger(opts ...LoggerOption) *Logger {
	cfg := loggerConfig{out: os.Stderr, level: slog.LevelInfo}
	for _, fn := range opts {
		fn(&cfg)
	}
	ho := &slog.HandlerOptions{Level: cfg.level}
	var h slog.Handler
	if cfg.json {
		h = slog.NewJSONHandler(cfg.out, ho)
	} else {
		h = slog.NewTextHandler(cfg.out, ho)
	}
	return &Logger{Logger: slog.New(h)}
}

// WrapLogger adopts an existing slog.Logger so the service can share a
// process-wide logging setup.
func WrapLogger(l *slog.Logger) *Logger {
	return &Logger{Logger: l}
}

// NoopLogger returns a Logger that discards all records.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithRobot adds a robot id field to the logger.
func (l *Logger) WithRobot(robot uint16) *Logger {
	return &Logger{
		Logger: l.Logger.With("robot", robot),
	}
}

// WithVertex adds a vertex field to the logger.
func (l *Logger) WithVertex(v vlc.VertexID) *Logger {
	return &Logger{
		Logger: l.Logger.With("robot", v.Robot, "pose", v.Pose),
	}
}

// LogCandidate logs a registered loop-closure candidate.
func (l *Logger) LogCandidate(query, match vlc.VertexID, score float64) {
	l.Debug("loop closure candidate",
		"query", query.String(),
		"match", match.String(),
		"score", score,
	)
}

// LogEdge logs a verified loop-closure edge.
func (l *Logger) LogEdge(src, dst vlc.VertexID, inliers, matches int) {
	l.Info("loop closure verified",
		"src", src.String(),
		"dst", dst.String(),
		"inliers", inliers,
		"matches", matches,
	)
}

// LogRejected logs a rejected candidate with its rejection cause.
func (l *Logger) LogRejected(query, match vlc.VertexID, err error) {
	l.Debug("loop closure rejected",
		"query", query.String(),
		"match", match.String(),
		"error", err,
	)
}
