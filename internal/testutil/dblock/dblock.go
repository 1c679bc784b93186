// Package dblock serializes test packages that share a database. Go runs
// package tests in parallel processes; holding a loopback listener is the
// cheapest cross-process mutex available.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45433"

func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
