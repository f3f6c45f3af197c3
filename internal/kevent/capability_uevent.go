//go:build linux && !nokuevent

package kevent

const ueventCompiled = true
