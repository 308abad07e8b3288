package core

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
)

var (
	crashMu    sync.Mutex
	finalizers []func()

	// Overridable in tests
	crashOutput io.Writer = os.Stderr
	exitFunc              = os.Exit
)

// RegisterFinalizer adds cleanup to run before a crash exits, e.g. restoring the terminal
// Finalizers run newest first
func RegisterFinalizer(fn func()) {
	crashMu.Lock()
	finalizers = append(finalizers, fn)
	crashMu.Unlock()
}

// ResetFinalizers drops every registered finalizer
func ResetFinalizers() {
	crashMu.Lock()
	finalizers = nil
	crashMu.Unlock()
}

// HandleCrash is the unified panic handler: it runs finalizers, prints the stack trace and exits
func HandleCrash(r any) {
	if r == nil {
		return
	}

	crashMu.Lock()
	fns := finalizers
	finalizers = nil
	crashMu.Unlock()

	// Terminal must be restored before anything is printed
	for i := len(fns) - 1; i >= 0; i-- {
		runFinalizer(fns[i])
	}

	fmt.Fprintf(crashOutput, "\r\n\x1b[31mCRASH DETECTED: %v\x1b[0m\r\n", r)
	fmt.Fprintf(crashOutput, "Stack Trace:\r\n%s\r\n", debug.Stack())
	if f, ok := crashOutput.(*os.File); ok {
		f.Sync()
	}

	exitFunc(1)
}

// A finalizer that panics must not prevent the others or the report
func runFinalizer(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Go runs fn in a new goroutine with panic recovery
// Use this instead of the 'go' keyword so the terminal is restored on crash
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				HandleCrash(r)
			}
		}()
		fn()
	}()
}
