//go:build !linux

package diagnostics

func IsTerminal(fd uintptr) bool {
	return false
}
