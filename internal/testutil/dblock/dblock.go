// Package dblock serialises test packages that share one DATABASE_URL by holding a local TCP
// port for the duration of the test.
package dblock

import (
	"net"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:45432"

// Addr is the lock address, overridable with LEDGER_TEST_DB_LOCK_ADDR so parallel CI jobs
// with separate databases do not wait on each other.
func Addr() string {
	if addr := os.Getenv("LEDGER_TEST_DB_LOCK_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

// Acquire blocks until the lock is held and returns its release func.
func Acquire() func() {
	addr := Addr()
	backoff := 25 * time.Millisecond
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, 500*time.Millisecond)
	}
}
