package artifact

import "log/slog"

type Option func(w *Writer)

// WithLogger specifies the logger for the writer
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}
