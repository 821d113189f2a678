//go:build !unix && !windows

package launcher

import "syscall"

func detachedAttr() *syscall.SysProcAttr {
	return nil
}
