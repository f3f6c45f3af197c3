//go:build linux && !nokroute

package kevent

const routeCompiled = true
