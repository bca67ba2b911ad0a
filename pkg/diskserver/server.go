// Package diskserver implements the TCP front end of the simulated disk:
// it decodes diskproto requests, drives a diskimage.Image, and encodes
// replies.
package diskserver

import (
	"bufio"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hugo0713/netfs/pkg/diskimage"
	"github.com/hugo0713/netfs/pkg/diskproto"
)

// Server accepts disk-protocol connections and serves them against a
// single shared Image. The reference implementation assumes a single fs
// server as its client, but nothing here prevents more than one.
type Server struct {
	img *diskimage.Image
	log logrus.FieldLogger
}

// New returns a Server fronting img.
func New(img *diskimage.Image, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{img: img, log: log}
}

// ListenAndServe listens on addr and serves connections until the listener
// errors or the process is killed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "diskserver: listen on %s", addr)
	}
	defer ln.Close()
	s.log.Infof("disk server listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "diskserver: accept")
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.log.Infof("disk client %s connected", remote)
	defer s.log.Infof("disk client %s disconnected", remote)

	r := bufio.NewReader(conn)
	for {
		frame, err := diskproto.ReadFrame(r)
		if err != nil {
			return
		}
		reply, err := s.dispatch(frame)
		if err != nil {
			s.log.WithError(err).Warnf("disk client %s: request failed", remote)
			continue
		}
		if err := diskproto.WriteFrame(conn, reply); err != nil {
			s.log.WithError(err).Warnf("disk client %s: reply failed", remote)
			return
		}
	}
}

func (s *Server) dispatch(frame []byte) ([]byte, error) {
	op, rest := diskproto.ParseRequestLine(frame)
	switch op {
	case diskproto.OpInfo:
		ncyl, nsec := s.img.Info()
		return diskproto.EncodeYes(diskproto.EncodeInfoReply(ncyl, nsec)), nil

	case diskproto.OpRead:
		cyl, sec, err := diskproto.ParseReadRequest(rest)
		if err != nil {
			return diskproto.EncodeNo(err.Error()), nil
		}
		var buf [diskproto.BlockSize]byte
		if err := s.img.ReadSector(cyl, sec, buf[:]); err != nil {
			s.log.WithError(err).Warnf("read (%d,%d) failed", cyl, sec)
			return diskproto.EncodeNo(err.Error()), nil
		}
		return diskproto.EncodeYes(buf[:]), nil

	case diskproto.OpWrite:
		cyl, sec, length, data, err := diskproto.ParseWriteRequest(rest)
		if err != nil {
			return diskproto.EncodeNo(err.Error()), nil
		}
		if length > len(data) {
			return diskproto.EncodeNo("short write payload"), nil
		}
		if err := s.img.WriteSector(cyl, sec, data[:length]); err != nil {
			s.log.WithError(err).Warnf("write (%d,%d) failed", cyl, sec)
			return diskproto.EncodeNo(err.Error()), nil
		}
		return diskproto.EncodeYes(nil), nil

	default:
		return diskproto.EncodeNo("unknown command"), nil
	}
}
