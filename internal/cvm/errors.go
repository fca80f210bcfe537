package cvm

import "errors"

// ErrAllSourcesFailed is returned when every download or parse of a required dataset failed.
var ErrAllSourcesFailed = errors.New("all sources failed")
