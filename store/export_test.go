package store

import "os"

// SetCreateTemp swaps the temp file constructor until restore is called.
func SetCreateTemp(f func(dir, pattern string) (*os.File, error)) (restore func()) {
	old := createTemp
	createTemp = f
	return func() { createTemp = old }
}
