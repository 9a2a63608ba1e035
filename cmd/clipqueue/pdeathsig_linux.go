//go:build linux

package main

import "syscall"

const prSetPDeathSig = 1

// enableParentDeathSignal asks the kernel to deliver SIGTERM to this
// process when its direct parent exits. This closes the signal-forwarding
// gap that can occur when the daemon is launched via wrapper processes
// (for example `go run`).
func enableParentDeathSignal() error {
	_, _, errno := syscall.RawSyscall(
		syscall.SYS_PRCTL,
		uintptr(prSetPDeathSig),
		uintptr(syscall.SIGTERM),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
