package main

import (
	"net"
	"os"

	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// notifySystemd sends READY=1 when started under a Type=notify unit.
func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET to a unix socket path for Type=notify units
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return xerrors.New("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return xerrors.Wrap(err, "systemd notify dial")
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		conn.Close()
		return xerrors.Wrap(err, "systemd notify write")
	}
	if err := conn.Close(); err != nil {
		return xerrors.Wrap(err, "systemd notify close")
	}
	return nil
}
