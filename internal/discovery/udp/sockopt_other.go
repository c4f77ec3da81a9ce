//go:build !unix && !windows

package udp

import "syscall"

func setSocketOptions(network, address string, c syscall.RawConn) error {
	return nil
}
