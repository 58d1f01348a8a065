package catalog

import "errors"

// Errors
var (
	ErrUnmarshal       = errors.New("unmarshal failed")
	ErrBadCatalogParam = errors.New("bad catalog param")
	ErrNotFound        = errors.New("formula not in catalog")
	ErrReadOnly        = errors.New("catalog is read-only")
	ErrIncompatible    = errors.New("catalog version is incompatible")
)
