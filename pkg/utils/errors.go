// Package utils provides small shared helpers used across acadchain.
package utils

import "fmt"

// Wrap adds context to an error message. It returns nil if err is nil.
// Grounded on the teacher's pkg/utils.Wrap.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
