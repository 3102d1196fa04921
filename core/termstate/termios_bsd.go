//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package termstate

import "golang.org/x/sys/unix"

const (
	ioctlReadTermios  = unix.TIOCGETA
	ioctlWriteTermios = unix.TIOCSETAW
)
