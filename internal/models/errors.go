package models

import "errors"

var errNonPositiveMass = errors.New("models: mass must be positive")
