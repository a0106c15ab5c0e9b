package badger

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Open открывает базу в dir; пустой dir - база в памяти
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return db, nil
}

// logger пишет логи badger через slog
type logger struct{}

func (logger) Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (logger) Warningf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (logger) Infof(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (logger) Debugf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}
