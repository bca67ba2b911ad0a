package fsserver_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hugo0713/netfs/pkg/blockcache"
	"github.com/hugo0713/netfs/pkg/diskclient"
	"github.com/hugo0713/netfs/pkg/diskimage"
	"github.com/hugo0713/netfs/pkg/diskserver"
	"github.com/hugo0713/netfs/pkg/fsclient"
	"github.com/hugo0713/netfs/pkg/fsserver"
	"github.com/hugo0713/netfs/pkg/vfs"
)

// freeAddr asks the OS for an unused loopback port.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestEndToEndOverLoopback(t *testing.T) {
	dir := t.TempDir()
	imgPath := dir + "/disk.img"

	img, err := diskimage.Open(imgPath, 8, 64, 0)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })

	diskAddr := freeAddr(t)
	ds := diskserver.New(img, nil)
	go ds.ListenAndServe(diskAddr)
	waitForListener(t, diskAddr)

	dc, err := diskclient.Dial(diskAddr)
	require.NoError(t, err)
	t.Cleanup(func() { dc.Close() })

	cache := blockcache.New(dc, nil)
	fs, err := vfs.Format(cache, dc.NumBlocks(), nil)
	require.NoError(t, err)

	fsAddr := freeAddr(t)
	fss := fsserver.New(fs, nil)
	go fss.ListenAndServe(fsAddr)
	waitForListener(t, fsAddr)

	c, err := fsclient.Dial(fsAddr)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Mkdir("docs"))
	_, err = c.Cd("docs")
	require.NoError(t, err)
	require.NoError(t, c.Create("readme"))
	require.NoError(t, c.WriteString("readme", "hello over the wire"))

	content, err := c.Cat("readme")
	require.NoError(t, err)
	require.Equal(t, "hello over the wire", string(content))

	require.NoError(t, c.Insert("readme", 5, []byte(",")))
	content, err = c.Cat("readme")
	require.NoError(t, err)
	require.Equal(t, "hello, over the wire", string(content))

	require.NoError(t, c.Delete("readme", 5, 1))
	content, err = c.Cat("readme")
	require.NoError(t, err)
	require.Equal(t, "hello over the wire", string(content))

	listing, err := c.Ls("")
	require.NoError(t, err)
	require.Contains(t, listing, "readme")
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("nothing listening on %s", addr)
}
