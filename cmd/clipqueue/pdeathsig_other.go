//go:build !linux

package main

func enableParentDeathSignal() error { return nil }
