// Package fsproto implements the wire codec for the filesystem-server
// protocol: a command name, a space, and command-specific arguments,
// framed the same length-prefixed way as pkg/diskproto so that file
// payloads (read/write bodies) can carry arbitrary bytes.
package fsproto

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hugo0713/netfs/pkg/diskproto"
)

// WriteFrame and ReadFrame reuse the disk protocol's length-prefixed
// framing; the two protocols are independent but share the same transport
// shape, so there is no reason to reinvent it.
var (
	WriteFrame = diskproto.WriteFrame
	ReadFrame  = diskproto.ReadFrame
)

// Command names, matching the reference fs-server's single-word command
// table.
const (
	CmdFormat  = "f"
	CmdCreate  = "mk"
	CmdMkdir   = "mkdir"
	CmdRemove  = "rm"
	CmdCd      = "cd"
	CmdRmdir   = "rmdir"
	CmdLs      = "ls"
	CmdCat     = "cat"
	CmdWrite   = "w"
	CmdInsert  = "i"
	CmdDelete  = "d"
	CmdExit    = "e"
	CmdLogin   = "login"
	CmdAddUser = "adduser"
	CmdDelUser = "deluser"
	CmdPwd     = "pwd"
	CmdStat    = "stat"
)

// ParseLine splits a command frame into its command word and the
// remaining raw bytes (which may carry a binary suffix for w).
func ParseLine(frame []byte) (cmd string, rest []byte) {
	i := 0
	for i < len(frame) && frame[i] != ' ' {
		i++
	}
	cmd = string(frame[:i])
	if i < len(frame) {
		rest = frame[i+1:]
	}
	return
}

// EncodeCommand builds a "<cmd> <args>" frame.
func EncodeCommand(cmd string, args ...string) []byte {
	if len(args) == 0 {
		return []byte(cmd)
	}
	return []byte(cmd + " " + strings.Join(args, " "))
}

// EncodeWriteCommand builds the "w <path> <len> " header followed by the
// raw payload bytes. The reference "w" command always truncates the file
// and writes from offset 0, so there is no offset field on the wire.
func EncodeWriteCommand(path string, data []byte) []byte {
	header := fmt.Sprintf("%s %s %d ", CmdWrite, path, len(data))
	buf := make([]byte, 0, len(header)+len(data))
	buf = append(buf, header...)
	buf = append(buf, data...)
	return buf
}

// ParseWriteArgs parses the "<path> <len> " header of a w command and
// returns the path, declared length and the raw payload that follows.
func ParseWriteArgs(rest []byte) (path string, length int, data []byte, err error) {
	fields := make([]int, 0, 2)
	for i := 0; i < len(rest) && len(fields) < 2; i++ {
		if rest[i] == ' ' {
			fields = append(fields, i)
		}
	}
	if len(fields) < 2 {
		return "", 0, nil, errors.New("fsproto: malformed write command")
	}
	path = string(rest[:fields[0]])
	length, err1 := strconv.Atoi(string(rest[fields[0]+1 : fields[1]]))
	if err1 != nil {
		return "", 0, nil, errors.New("fsproto: malformed write command")
	}
	data = rest[fields[1]+1:]
	return path, length, data, nil
}

// EncodeInsertCommand builds the "i <path> <pos> <len> " header followed
// by the raw payload bytes to splice in at pos.
func EncodeInsertCommand(path string, pos int, data []byte) []byte {
	header := fmt.Sprintf("%s %s %d %d ", CmdInsert, path, pos, len(data))
	buf := make([]byte, 0, len(header)+len(data))
	buf = append(buf, header...)
	buf = append(buf, data...)
	return buf
}

// ParseInsertArgs parses the "<path> <pos> <len> " header of an i command.
func ParseInsertArgs(rest []byte) (path string, pos, length int, data []byte, err error) {
	fields := make([]int, 0, 3)
	for i := 0; i < len(rest) && len(fields) < 3; i++ {
		if rest[i] == ' ' {
			fields = append(fields, i)
		}
	}
	if len(fields) < 3 {
		return "", 0, 0, nil, errors.New("fsproto: malformed insert command")
	}
	path = string(rest[:fields[0]])
	pos, err1 := strconv.Atoi(string(rest[fields[0]+1 : fields[1]]))
	length, err2 := strconv.Atoi(string(rest[fields[1]+1 : fields[2]]))
	if err1 != nil || err2 != nil {
		return "", 0, 0, nil, errors.New("fsproto: malformed insert command")
	}
	data = rest[fields[2]+1:]
	return path, pos, length, data, nil
}

// EncodeDeleteCommand builds the "d <path> <pos> <len>" command. Unlike
// write and insert it carries no payload.
func EncodeDeleteCommand(path string, pos, length int) []byte {
	return []byte(fmt.Sprintf("%s %s %d %d", CmdDelete, path, pos, length))
}

// ParseDeleteArgs parses the "<path> <pos> <len>" arguments of a d
// command.
func ParseDeleteArgs(rest []byte) (path string, pos, length int, err error) {
	parts := strings.Fields(string(rest))
	if len(parts) != 3 {
		return "", 0, 0, errors.New("fsproto: malformed delete command")
	}
	pos, err1 := strconv.Atoi(parts[1])
	length, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return "", 0, 0, errors.New("fsproto: malformed delete command")
	}
	return parts[0], pos, length, nil
}

// EncodeYes and EncodeNo mirror the disk protocol's reply envelope.
var (
	EncodeYes = diskproto.EncodeYes
	EncodeNo  = diskproto.EncodeNo
	IsYes     = diskproto.IsYes
)

// BufioReader is re-exported for callers that only import fsproto.
type BufioReader = bufio.Reader
