package vfs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo0713/netfs/pkg/blockcache"
)

type memTransport struct {
	blocks map[uint32][BlockSize]byte
}

func newMemTransport() *memTransport {
	return &memTransport{blocks: make(map[uint32][BlockSize]byte)}
}

func (m *memTransport) ReadBlock(b uint32, buf []byte) error {
	data := m.blocks[b]
	copy(buf, data[:])
	return nil
}

func (m *memTransport) WriteBlock(b uint32, buf []byte) error {
	var data [BlockSize]byte
	copy(data[:], buf)
	m.blocks[b] = data
	return nil
}

func newTestFS(t *testing.T, size uint32) *FileSystem {
	t.Helper()
	cache := blockcache.New(newMemTransport(), nil)
	fs, err := Format(cache, size, nil)
	require.NoError(t, err)
	return fs
}

func TestFormatThenMountRoundTrips(t *testing.T) {
	tr := newMemTransport()
	cache := blockcache.New(tr, nil)
	_, err := Format(cache, 2000, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Flush())

	cache2 := blockcache.New(tr, nil)
	fs2, err := Mount(cache2, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), fs2.sb.Size)
}

func TestMountRejectsUnformattedDevice(t *testing.T) {
	cache := blockcache.New(newMemTransport(), nil)
	_, err := Mount(cache, nil)
	assert.Equal(t, ErrNotFormatted, err)
}

func TestMkdirAndLs(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()

	require.NoError(t, fs.Mkdir(s, "docs", 0755))
	entries, err := fs.Ls(s, "")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "docs")
}

func TestMkdirDuplicateNameFails(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()

	require.NoError(t, fs.Mkdir(s, "docs", 0755))
	err := fs.Mkdir(s, "docs", 0755)
	assert.Equal(t, ErrExists, err)
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()

	require.NoError(t, fs.Create(s, "hello.txt", 0644))
	data := []byte("hello, filesystem")
	n, err := fs.Write(s, "hello.txt", 0, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = fs.Read(s, "hello.txt", 0, out)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, out)
}

func TestWriteGrowsFileAndZeroFillsGap(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "sparse.txt", 0644))

	_, err := fs.Write(s, "sparse.txt", 600, []byte("tail"))
	require.NoError(t, err)

	out := make([]byte, 604)
	n, err := fs.Read(s, "sparse.txt", 0, out)
	require.NoError(t, err)
	assert.Equal(t, 604, n)
	for _, b := range out[:600] {
		assert.Equal(t, byte(0), b)
	}
	assert.Equal(t, "tail", string(out[600:604]))
}

func TestWriteSpanningManyBlocksExercisesIndirection(t *testing.T) {
	fs := newTestFS(t, 20000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "big.bin", 0644))

	// Past NDirect (10 blocks = 5120 bytes), into single-indirect range.
	size := (NDirect + 5) * BlockSize
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	n, err := fs.Write(s, "big.bin", 0, data)
	require.NoError(t, err)
	assert.Equal(t, size, n)

	out := make([]byte, size)
	n, err = fs.Read(s, "big.bin", 0, out)
	require.NoError(t, err)
	assert.Equal(t, size, n)
	assert.Equal(t, data, out)
}

func TestRmdirFailsWhenNotEmpty(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Mkdir(s, "dir", 0755))
	require.NoError(t, fs.Cd(s, "dir"))
	require.NoError(t, fs.Create(s, "file", 0644))
	require.NoError(t, fs.Cd(s, ".."))

	err := fs.Rmdir(s, "dir")
	assert.Equal(t, ErrDirectoryNotEmpty, err)
}

func TestRmdirSucceedsWhenEmpty(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Mkdir(s, "dir", 0755))
	require.NoError(t, fs.Rmdir(s, "dir"))

	_, err := fs.Stat(s, "dir")
	assert.Equal(t, ErrNotFound, err)
}

func TestRemoveRejectsDirectory(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Mkdir(s, "dir", 0755))

	err := fs.Remove(s, "dir")
	assert.Equal(t, ErrWrongType, err)
}

func TestCdDotDotReturnsToParent(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Mkdir(s, "a", 0755))
	require.NoError(t, fs.Cd(s, "a"))
	require.NoError(t, fs.Cd(s, ".."))
	assert.Equal(t, uint32(RootInum), s.CurDir)
}

func TestNonOwnerCannotWriteWithoutWorldBit(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	require.NoError(t, fs.Create(admin, "locked.txt", 0600))

	rec, err := fs.users.create("alice")
	require.NoError(t, err)

	other := &Session{UID: rec.UID, CurDir: RootInum, CurPath: "/"}
	_, err = fs.Write(other, "locked.txt", 0, []byte("x"))
	assert.Equal(t, ErrPermissionDenied, err)
}

func TestWorldWriteBitGrantsAccess(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	require.NoError(t, fs.Create(admin, "shared.txt", 0622))

	rec, err := fs.users.create("bob")
	require.NoError(t, err)
	other := &Session{UID: rec.UID, CurDir: RootInum, CurPath: "/"}

	_, err = fs.Write(other, "shared.txt", 0, []byte("hi"))
	assert.NoError(t, err)
}

func TestAdminBypassesPermissionChecks(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	require.NoError(t, fs.Create(admin, "nobody.txt", 0000))

	_, err := fs.Write(admin, "nobody.txt", 0, []byte("ok"))
	assert.NoError(t, err)
}

func TestLoginSwitchesSessionUser(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	_, err := fs.users.create("carol")
	require.NoError(t, err)

	require.NoError(t, fs.Login(admin, "carol"))
	rec, err := fs.users.lookup("carol")
	require.NoError(t, err)
	assert.Equal(t, rec.UID, admin.UID)
}

func TestAddUserRequiresAdmin(t *testing.T) {
	fs := newTestFS(t, 2000)
	rec, err := fs.users.create("dave")
	require.NoError(t, err)
	nonAdmin := &Session{UID: rec.UID, CurDir: RootInum, CurPath: "/"}

	err = fs.AddUser(nonAdmin, "eve")
	assert.Equal(t, ErrPermissionDenied, err)
}

func TestDelUserCannotRemoveAdmin(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	err := fs.DelUser(admin, "admin")
	assert.Equal(t, ErrPermissionDenied, err)
}

func TestUnsupportedPathFormsRejected(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()

	_, err := fs.Stat(s, "a/b")
	assert.Equal(t, ErrUnsupportedPath, err)

	_, err = fs.Stat(s, ".")
	assert.Equal(t, ErrUnsupportedPath, err)
}

func TestOverwriteTruncatesBeforeWriting(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "log.txt", 0644))
	_, err := fs.Write(s, "log.txt", 0, []byte("a much longer original line"))
	require.NoError(t, err)

	n, err := fs.Overwrite(s, "log.txt", []byte("short"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	out := make([]byte, 64)
	n, err = fs.Read(s, "log.txt", 0, out)
	require.NoError(t, err)
	assert.Equal(t, "short", string(out[:n]))
}

func TestInsertSplicesBytesIn(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "greeting.txt", 0644))
	_, err := fs.Overwrite(s, "greeting.txt", []byte("hello world"))
	require.NoError(t, err)

	_, err = fs.Insert(s, "greeting.txt", 5, []byte(","))
	require.NoError(t, err)

	out := make([]byte, 32)
	n, err := fs.Read(s, "greeting.txt", 0, out)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(out[:n]))
}

func TestInsertRejectsPositionPastEnd(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "short.txt", 0644))
	_, err := fs.Overwrite(s, "short.txt", []byte("abc"))
	require.NoError(t, err)

	_, err = fs.Insert(s, "short.txt", 10, []byte("x"))
	assert.Equal(t, ErrRange, err)
}

func TestDeleteRemovesByteRange(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "greeting.txt", 0644))
	_, err := fs.Overwrite(s, "greeting.txt", []byte("hello, world"))
	require.NoError(t, err)

	require.NoError(t, fs.Delete(s, "greeting.txt", 5, 1))

	out := make([]byte, 32)
	n, err := fs.Read(s, "greeting.txt", 0, out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out[:n]))
}

func TestDeleteClampsLengthToRemainingBytes(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "short.txt", 0644))
	_, err := fs.Overwrite(s, "short.txt", []byte("abcdef"))
	require.NoError(t, err)

	require.NoError(t, fs.Delete(s, "short.txt", 4, 100))

	out := make([]byte, 32)
	n, err := fs.Read(s, "short.txt", 0, out)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(out[:n]))
}

func TestAddUserCreatesHomeDirectory(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	require.NoError(t, fs.AddUser(admin, "frank"))

	rec, err := fs.users.lookup("frank")
	require.NoError(t, err)

	info, err := fs.Stat(admin, fmt.Sprintf("user_%d", rec.UID))
	require.NoError(t, err)
	assert.Equal(t, TypeDir, info.Type)
	assert.Equal(t, rec.UID, info.UID)
}

func TestAbsolutePathResolution(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Mkdir(s, "a", 0755))
	require.NoError(t, fs.Cd(s, "a"))
	require.NoError(t, fs.Create(s, "x", 0644))

	info, err := fs.Stat(s, "/a/x")
	require.NoError(t, err)
	assert.Equal(t, "x", info.Name)
}

func TestFormatReservesSystemBlocksFromAllocation(t *testing.T) {
	fs := newTestFS(t, 2000)
	for b := uint32(0); b < fs.sb.DataStart; b++ {
		used, err := fs.blocks.IsUsed(b)
		require.NoError(t, err)
		assert.Truef(t, used, "system block %d must be marked used", b)
	}

	s := NewSession()
	require.NoError(t, fs.Create(s, "x", 0644))
	_, err := fs.Write(s, "x", 0, []byte("a"))
	require.NoError(t, err)

	ip, err := fs.lookupFile(s, "x")
	require.NoError(t, err)
	for _, a := range ip.Addrs {
		if a != 0 {
			assert.GreaterOrEqualf(t, a, fs.sb.DataStart, "allocator handed out system block %d", a)
		}
	}
}

func TestBlocksCountTracksAllocation(t *testing.T) {
	fs := newTestFS(t, 20000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "f", 0644))

	// Fill exactly the 10 direct slots.
	data := make([]byte, NDirect*BlockSize)
	_, err := fs.Write(s, "f", 0, data)
	require.NoError(t, err)
	ip, err := fs.lookupFile(s, "f")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), ip.Blocks)

	// One more block crosses into single-indirect: +1 leaf, +1 indirect block.
	_, err = fs.Write(s, "f", NDirect*BlockSize, []byte("x"))
	require.NoError(t, err)
	ip, err = fs.lookupFile(s, "f")
	require.NoError(t, err)
	assert.Equal(t, uint32(12), ip.Blocks)
}

func TestTruncateResetsBlocksCount(t *testing.T) {
	fs := newTestFS(t, 2000)
	s := NewSession()
	require.NoError(t, fs.Create(s, "f", 0644))
	_, err := fs.Write(s, "f", 0, []byte("hello"))
	require.NoError(t, err)

	_, err = fs.Overwrite(s, "f", []byte("hi"))
	require.NoError(t, err)
	ip, err := fs.lookupFile(s, "f")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ip.Blocks)
}

func TestNonAdminCanListRoot(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	require.NoError(t, fs.AddUser(admin, "alice"))

	s := NewSession()
	require.NoError(t, fs.Login(s, "alice"))
	_, err := fs.Ls(s, "")
	require.NoError(t, err)
}

func TestRemoveChecksPermissionOnFileNotParent(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	require.NoError(t, fs.AddUser(admin, "alice"))
	// World-writable file owned by admin, sitting in root (0755: alice has no
	// write access to the directory itself).
	require.NoError(t, fs.Create(admin, "shared", 0602))

	s := NewSession()
	require.NoError(t, fs.Login(s, "alice"))

	err := fs.Remove(s, "shared")
	require.NoError(t, err, "a world-writable file must be removable by write permission on the file, even without write access to its parent directory")
}

func TestOwnerFallsThroughToWorldBitWhenOwnerBitUnset(t *testing.T) {
	fs := newTestFS(t, 2000)
	admin := NewSession()
	require.NoError(t, fs.AddUser(admin, "alice"))
	rec, err := fs.users.lookup("alice")
	require.NoError(t, err)

	s := NewSession()
	require.NoError(t, fs.Login(s, "alice"))
	require.NoError(t, fs.Cd(s, fmt.Sprintf("user_%d", rec.UID)))
	require.NoError(t, fs.Create(s, "f", 0644))

	// Flip the owner write bit off but leave the world write bit set: the
	// owner must still be able to write by falling through to it.
	ip, err := fs.lookupFile(s, "f")
	require.NoError(t, err)
	ip.Mode = 0446
	require.NoError(t, fs.writeInode(ip))

	_, err = fs.Write(s, "f", 0, []byte("x"))
	require.NoError(t, err)
}
