// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package store

// fileLock is a no-op outside Linux. Writers in one process are still
// serialized by the store's in-process identity locks.
type fileLock struct{}

func acquireFileLock(string) (*fileLock, error) {
	return &fileLock{}, nil
}

// Release is a no-op.
func (l *fileLock) Release() {}
