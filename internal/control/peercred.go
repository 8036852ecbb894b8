package control

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerCategory returns a rate-limiter category string identifying the uid of
// the process on the other end of a Unix socket connection, or "" if conn
// isn't a Unix socket or the credential lookup fails (e.g. on platforms
// without SO_PEERCRED).
func peerCategory(conn net.Conn) string {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return ""
	}
	sc, err := uc.SyscallConn()
	if err != nil {
		return ""
	}

	var uid uint32
	var ucredErr error
	err = sc.Control(func(fd uintptr) {
		var cred *unix.Ucred
		cred, ucredErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if ucredErr == nil {
			uid = cred.Uid
		}
	})
	if err != nil || ucredErr != nil {
		return ""
	}
	return fmt.Sprintf("uid:%d", uid)
}
