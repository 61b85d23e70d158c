//go:build windows

package fsutil

import "os"

// lockFile is a no-op on Windows.
func lockFile(_ *os.File) error   { return nil }
func unlockFile(_ *os.File) error { return nil }
