package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/store"
	"github.com/hrygo/cortex/store/db/sqlite"
)

func newServeFixture(t *testing.T, port int) (*profile.Profile, *store.Store) {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "serve.db"),
		Addr:   "127.0.0.1",
		Port:   port,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	require.NoError(t, st.Migrate(context.Background()))
	return p, st
}

func TestServeClosesStoreWhenListenFails(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	p, st := newServeFixture(t, busy.Addr().(*net.TCPAddr).Port)
	greeted := false
	err = serve(context.Background(), p, st, make(chan os.Signal), func(*profile.Profile) { greeted = true })
	assert.Error(t, err)
	assert.False(t, greeted)
	assert.Error(t, st.GetDriver().GetDB().Ping(), "store is closed")
}

func TestServeStopsOnSignal(t *testing.T) {
	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := free.Addr().(*net.TCPAddr).Port
	require.NoError(t, free.Close())

	p, st := newServeFixture(t, port)
	signals := make(chan os.Signal, 1)
	greeted := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), p, st, signals, func(*profile.Profile) { close(greeted) })
	}()

	select {
	case <-greeted:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	signals <- syscall.SIGTERM

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Error(t, st.GetDriver().GetDB().Ping(), "store is closed")
}
