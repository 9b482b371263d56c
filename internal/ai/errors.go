// internal/ai/errors.go
package ai

import "errors"

var errEmptyCompletion = errors.New("completion returned no text")
