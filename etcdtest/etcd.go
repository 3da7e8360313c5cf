// Package etcdtest runs a local Etcd server for the tests of a package, and
// hands out clients of it which are scrubbed after each test.
package etcdtest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var (
	server *exec.Cmd
	client *clientv3.Client
)

// TestMainWithEtcd starts an `etcd` server for the duration of the package's
// tests, and is invoked from the package's TestMain:
//
//	func TestMain(m *testing.M) { etcdtest.TestMainWithEtcd(m) }
//
// If no `etcd` binary is on the PATH, tests run without a server and
// TestClient skips them.
func TestMainWithEtcd(m *testing.M) {
	var bin, err = exec.LookPath("etcd")
	if err != nil {
		log.WithField("err", err).Warn("etcd not found; tests requiring it will be skipped")
		os.Exit(m.Run())
	}

	dir, err := os.MkdirTemp("", "etcdtest")
	if err != nil {
		log.WithField("err", err).Fatal("failed to create etcd directory")
	}
	server = exec.Command(bin,
		"--data-dir", filepath.Join(dir, "data"),
		"--listen-peer-urls", "unix://peer.sock:0",
		"--listen-client-urls", "unix://client.sock:0",
		"--advertise-client-urls", "unix://client.sock:0",
	)
	server.Dir = dir
	server.Env = append(os.Environ(), "ETCD_LOG_LEVEL=error", "ETCD_LOGGER=zap")
	server.Stdout, server.Stderr = os.Stdout, os.Stderr
	// Deliver SIGTERM to `etcd` if this process dies, such as on a test timeout panic.
	server.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}

	if err = server.Start(); err != nil {
		log.WithField("err", err).Fatal("failed to start etcd")
	}
	os.Exit(run(m, dir))
}

func run(m *testing.M, dir string) int {
	defer func() {
		if err := server.Process.Signal(syscall.SIGTERM); err != nil {
			log.WithField("err", err).Error("failed to TERM etcd")
		}
		_ = server.Wait()
		_ = os.RemoveAll(dir)
	}()

	var ep = "unix://" + dir + "/client.sock:0"
	var err error

	if client, err = clientv3.New(clientv3.Config{
		Endpoints:   []string{ep},
		DialTimeout: 5 * time.Second,
	}); err != nil {
		log.WithFields(log.Fields{"err": err, "endpoint": ep}).Fatal("failed to build etcd client")
	}
	defer client.Close()

	// Block until the server is serving.
	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err = client.Get(ctx, "", clientv3.WithPrefix(), clientv3.WithLimit(1)); err != nil {
		log.WithFields(log.Fields{"err": err, "endpoint": ep}).Fatal("etcd didn't become ready")
	}
	return m.Run()
}

// TestClient returns a client of the test Etcd server, skipping the test if
// there is none. It fails the test if the keyspace isn't empty, and removes
// all keys once the test completes.
func TestClient(t testing.TB) *clientv3.Client {
	if client == nil {
		t.Skip("etcd is not available")
	}
	var resp, err = client.Get(context.Background(), "", clientv3.WithPrefix(), clientv3.WithLimit(5))
	if err != nil {
		t.Fatal(err)
	} else if len(resp.Kvs) != 0 {
		t.Fatalf("etcd not empty; did a previous test not clean up?\n%+v", resp)
	}

	t.Cleanup(func() {
		if _, err := client.Delete(context.Background(), "", clientv3.WithPrefix()); err != nil {
			t.Error(err)
		}
	})
	return client
}
