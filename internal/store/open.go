package store

import (
	"fmt"
	"io"

	"github.com/soyeahso/plugcat/internal/logging"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenRunStore builds the run store named by kind ("sqlite", "memory" or
// "none"). For "none" it returns a nil RunStore. The returned closer is
// never nil.
func OpenRunStore(kind, path string, log *logging.Logger) (RunStore, io.Closer, error) {
	switch kind {
	case "sqlite":
		db, err := Open(path, log)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return NewSQLiteRunStore(db), db, nil
	case "memory":
		return NewMemoryRunStore(), nopCloser{}, nil
	case "none", "":
		return nil, nopCloser{}, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown history store %q", kind)
	}
}
