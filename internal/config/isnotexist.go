package config

import (
	"errors"
	"io/fs"
)

// isNotExist reports whether err stems from the .env file simply being absent.
// Viper wraps the underlying fs error when given an explicit config file path.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
