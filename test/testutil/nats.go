package testutil

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSURLEnv points integration tests at an already running JetStream server.
const NATSURLEnv = "STOCKALERT_TEST_NATS_URL"

// StartLocalNATSServer returns a JetStream URL for integration tests.
// Params: test handle; skipped in short mode or when neither NATSURLEnv nor nats-server is available.
// Returns: client URL and idempotent stop callback.
func StartLocalNATSServer(tb testing.TB) (string, func()) {
	tb.Helper()

	if testing.Short() {
		tb.Skip("nats integration disabled in short mode")
	}
	if url := os.Getenv(NATSURLEnv); url != "" {
		waitForNATS(tb, url, 5*time.Second)
		return url, func() {}
	}

	binary, err := exec.LookPath("nats-server")
	if err != nil {
		tb.Skipf("nats-server not in PATH and %s unset", NATSURLEnv)
	}
	port, err := loopbackPort()
	if err != nil {
		tb.Fatalf("reserve port: %v", err)
	}
	server := exec.Command(binary, "-js", "-a", "127.0.0.1", "-p", strconv.Itoa(port), "-sd", tb.TempDir())
	if err := server.Start(); err != nil {
		tb.Skipf("start nats-server: %v", err)
	}

	var once sync.Once
	stop := func() { once.Do(func() { stopProcess(server.Process, 5*time.Second) }) }
	tb.Cleanup(stop)

	url := fmt.Sprintf("nats://127.0.0.1:%d", port)
	waitForNATS(tb, url, 8*time.Second)
	return url, stop
}

func loopbackPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stopProcess sends SIGTERM and kills the process if it outlives grace.
func stopProcess(proc *os.Process, grace time.Duration) {
	if proc == nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = proc.Wait()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		_ = proc.Kill()
		<-done
	}
}

func waitForNATS(tb testing.TB, url string, timeout time.Duration) {
	tb.Helper()

	var lastErr error
	for deadline := time.Now().Add(timeout); time.Now().Before(deadline); time.Sleep(100 * time.Millisecond) {
		nc, err := nats.Connect(url, nats.Timeout(time.Second))
		if err == nil {
			nc.Close()
			return
		}
		lastErr = err
	}
	tb.Fatalf("nats at %s not ready after %s: %v", url, timeout, lastErr)
}
