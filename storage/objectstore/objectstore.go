package objectstore

import (
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

// New opens the storage driver selected by the configuration.
func New(conf core.StorageConfig) (core.FileStorage, error) {
	switch conf.Driver {
	case "oss":
		return NewOSSStorage(conf)
	case "local", "":
		return NewLocalStorage(conf.LocalDir, conf.PublicBaseURL)
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Driver)
	}
}
