// Package fsserver is the TCP front end of the filesystem server: it
// decodes fsproto commands, drives a vfs.FileSystem on behalf of a
// per-connection session, and formats the listing/status text the
// reference client expects to print.
package fsserver

import (
	"bufio"
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hugo0713/netfs/pkg/fsproto"
	"github.com/hugo0713/netfs/pkg/vfs"
)

// MaxConnections bounds concurrent clients, matching the reference
// server's fixed connection table size.
const MaxConnections = vfs.MaxConnections

// Server accepts filesystem-protocol connections and serves them against
// a shared vfs.FileSystem.
type Server struct {
	fs  *vfs.FileSystem
	log logrus.FieldLogger

	sem chan struct{}
}

// New returns a Server fronting fs.
func New(fs *vfs.FileSystem, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{fs: fs, log: log, sem: make(chan struct{}, MaxConnections)}
}

// ListenAndServe listens on addr and serves connections until the
// listener errors.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "fsserver: listen on %s", addr)
	}
	defer ln.Close()
	s.log.Infof("filesystem server listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "fsserver: accept")
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	select {
	case s.sem <- struct{}{}:
	default:
		s.log.Warnf("fs client %s rejected: max connections (%d) reached", remote, MaxConnections)
		fsproto.WriteFrame(conn, fsproto.EncodeNo("too many connections"))
		return
	}
	defer func() { <-s.sem }()

	s.log.Infof("fs client %s connected", remote)
	defer s.log.Infof("fs client %s disconnected", remote)

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("fs client %s: handler panic: %v", remote, r)
		}
	}()

	session := vfs.NewSession()
	r := bufio.NewReader(conn)
	for {
		frame, err := fsproto.ReadFrame(r)
		if err != nil {
			return
		}
		reply, exit := s.dispatch(session, frame)
		if err := fsproto.WriteFrame(conn, reply); err != nil {
			s.log.WithError(err).Warnf("fs client %s: reply failed", remote)
			return
		}
		if exit {
			return
		}
	}
}

// dispatch decodes one command frame and returns the reply frame plus
// whether the connection should now close (the "e" command).
func (s *Server) dispatch(session *vfs.Session, frame []byte) ([]byte, bool) {
	cmd, rest := fsproto.ParseLine(frame)
	switch cmd {
	case fsproto.CmdExit:
		return fsproto.EncodeYes([]byte("Bye!")), true

	case fsproto.CmdLogin:
		name := string(rest)
		if err := s.fs.Login(session, name); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdAddUser:
		name := string(rest)
		if err := s.fs.AddUser(session, name); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdDelUser:
		name := string(rest)
		if err := s.fs.DelUser(session, name); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdMkdir:
		name := string(rest)
		if err := s.fs.Mkdir(session, name, 0755); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdCreate:
		name := string(rest)
		if err := s.fs.Create(session, name, 0644); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdRemove:
		name := string(rest)
		if err := s.fs.Remove(session, name); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdRmdir:
		name := string(rest)
		if err := s.fs.Rmdir(session, name); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdCd:
		name := string(rest)
		if err := s.fs.Cd(session, name); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes([]byte("Changed to " + session.CurPath)), false

	case fsproto.CmdPwd:
		return fsproto.EncodeYes([]byte(session.CurPath)), false

	case fsproto.CmdLs:
		path := string(rest)
		entries, err := s.fs.Ls(session, path)
		if err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes([]byte(formatListing(entries))), false

	case fsproto.CmdStat:
		path := string(rest)
		info, err := s.fs.Stat(session, path)
		if err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes([]byte(formatStat(info))), false

	case fsproto.CmdCat:
		path := string(rest)
		info, err := s.fs.Stat(session, path)
		if err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		buf := make([]byte, info.Size)
		n, err := s.fs.Read(session, path, 0, buf)
		if err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(buf[:n]), false

	case fsproto.CmdWrite:
		path, length, data, err := fsproto.ParseWriteArgs(rest)
		if err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		if length > len(data) {
			return fsproto.EncodeNo("short write payload"), false
		}
		if _, err := s.fs.Overwrite(session, path, data[:length]); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdInsert:
		path, pos, length, data, err := fsproto.ParseInsertArgs(rest)
		if err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		if length > len(data) {
			return fsproto.EncodeNo("short write payload"), false
		}
		if _, err := s.fs.Insert(session, path, uint32(pos), data[:length]); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	case fsproto.CmdDelete:
		path, pos, length, err := fsproto.ParseDeleteArgs(rest)
		if err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		if err := s.fs.Delete(session, path, uint32(pos), uint32(length)); err != nil {
			return fsproto.EncodeNo(err.Error()), false
		}
		return fsproto.EncodeYes(nil), false

	default:
		return fsproto.EncodeNo("unknown command"), false
	}
}

func formatListing(entries []vfs.DirEntryInfo) string {
	if len(entries) == 0 {
		return ""
	}
	out := "Permissions    UID  Size  Name\n"
	out += "-------------------------------------\n"
	for _, e := range entries {
		out += fmt.Sprintf("%c%s %3d %8d  %s\n", typeChar(e.Type), modeString(e.Mode), e.UID, e.Size, e.Name)
	}
	return out
}

func formatStat(e vfs.DirEntryInfo) string {
	return fmt.Sprintf("%c%s %3d %8d  %s", typeChar(e.Type), modeString(e.Mode), e.UID, e.Size, e.Name)
}

func typeChar(t vfs.InodeType) byte {
	switch t {
	case vfs.TypeDir:
		return 'd'
	case vfs.TypeFile:
		return '-'
	default:
		return '?'
	}
}

// modeString renders all nine owner/group/world rwx bits of mode as
// stored. Only the owner and world read/write bits are enforced; the group
// and execute bits are shown but never consulted.
func modeString(mode uint16) string {
	bits := [...]struct {
		mask byte
		ch   byte
	}{
		{0400, 'r'}, {0200, 'w'}, {0100, 'x'},
		{0040, 'r'}, {0020, 'w'}, {0010, 'x'},
		{0004, 'r'}, {0002, 'w'}, {0001, 'x'},
	}
	buf := make([]byte, 9)
	for i, b := range bits {
		if mode&uint16(b.mask) != 0 {
			buf[i] = b.ch
		} else {
			buf[i] = '-'
		}
	}
	return string(buf)
}
