// SPDX-License-Identifier: Unlicense OR MIT

package ngl

import (
	"fmt"
	"sync"
	"unsafe"
)

// Process-wide Java VM handle for Android media integration. The
// handle is set once by the embedding application; the first setter
// wins and conflicting later values fail.
var javaVM struct {
	mu sync.Mutex
	vm unsafe.Pointer
}

// SetJavaVM registers the process's Java virtual machine handle.
// Setting the same handle again is a no-op; setting a different one
// fails.
func SetJavaVM(vm unsafe.Pointer) error {
	javaVM.mu.Lock()
	defer javaVM.mu.Unlock()
	switch {
	case javaVM.vm == nil:
		javaVM.vm = vm
		return nil
	case javaVM.vm == vm:
		return nil
	}
	return fmt.Errorf("a Java virtual machine has already been set: %w", ErrInvalidUsage)
}

// JavaVM returns the registered Java virtual machine handle, or nil.
func JavaVM() unsafe.Pointer {
	javaVM.mu.Lock()
	defer javaVM.mu.Unlock()
	return javaVM.vm
}
