package model

import "errors"

// ErrModelNotTrained is returned when classify/detect is invoked before any
// successful train or load. Fatal to the call, not to the process.
var ErrModelNotTrained = errors.New("model not trained")

// ErrUnsupportedStrategy is returned when a persisted model blob carries a
// strategy tag no registered detector recognizes.
var ErrUnsupportedStrategy = errors.New("unsupported detector strategy")

// ErrEmptyTrainingSet is returned when training is attempted with no samples.
// Training failures fail fast and are never retried internally.
var ErrEmptyTrainingSet = errors.New("empty training set")
