package dbstorage

import (
	"errors"
)

var (
	ErrDataNotExist = errors.New("data not exist")
)
