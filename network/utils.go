package network

import (
	"errors"
	"io/fs"
	"syscall"
)

// UnlinkUdsFile 删除 unix 套接字文件，文件不存在时忽略。
func UnlinkUdsFile(network, addr string) error {
	if network != "unix" {
		return nil
	}
	if err := syscall.Unlink(addr); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
