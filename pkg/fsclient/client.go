// Package fsclient is a library client for the filesystem-server protocol,
// used both by cmd/fsclient's interactive shell and by integration tests.
package fsclient

import (
	"bufio"
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/hugo0713/netfs/pkg/fsproto"
)

// Client is a connection to the filesystem server.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to the filesystem server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "fsclient: dial %s", addr)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// send issues a raw fsproto command frame and returns the server's reply
// payload, or an error if the server replied "No ...".
func (c *Client) send(frame []byte) ([]byte, error) {
	if err := fsproto.WriteFrame(c.conn, frame); err != nil {
		return nil, errors.Wrap(err, "fsclient: send")
	}
	reply, err := fsproto.ReadFrame(c.r)
	if err != nil {
		return nil, errors.Wrap(err, "fsclient: read reply")
	}
	payload, ok := fsproto.IsYes(reply)
	if !ok {
		return nil, errors.New(string(reply))
	}
	return payload, nil
}

// Raw sends the exact command line the interactive shell would and
// returns the reply payload verbatim (still distinguishing "No" as an
// error).
func (c *Client) Raw(line string) ([]byte, error) {
	return c.send([]byte(line))
}

// Login authenticates as name.
func (c *Client) Login(name string) error {
	_, err := c.send(fsproto.EncodeCommand(fsproto.CmdLogin, name))
	return err
}

// AddUser creates a new user account.
func (c *Client) AddUser(name string) error {
	_, err := c.send(fsproto.EncodeCommand(fsproto.CmdAddUser, name))
	return err
}

// DelUser removes a user account.
func (c *Client) DelUser(name string) error {
	_, err := c.send(fsproto.EncodeCommand(fsproto.CmdDelUser, name))
	return err
}

// Mkdir creates a directory.
func (c *Client) Mkdir(path string) error {
	_, err := c.send(fsproto.EncodeCommand(fsproto.CmdMkdir, path))
	return err
}

// Rmdir removes an empty directory.
func (c *Client) Rmdir(path string) error {
	_, err := c.send(fsproto.EncodeCommand(fsproto.CmdRmdir, path))
	return err
}

// Create makes a new, empty file.
func (c *Client) Create(path string) error {
	_, err := c.send(fsproto.EncodeCommand(fsproto.CmdCreate, path))
	return err
}

// Remove deletes a file.
func (c *Client) Remove(path string) error {
	_, err := c.send(fsproto.EncodeCommand(fsproto.CmdRemove, path))
	return err
}

// Cd changes the current directory and returns the server's reply text,
// "Changed to <new path>".
func (c *Client) Cd(path string) (string, error) {
	payload, err := c.send(fsproto.EncodeCommand(fsproto.CmdCd, path))
	return string(payload), err
}

// Pwd returns the current directory.
func (c *Client) Pwd() (string, error) {
	payload, err := c.send(fsproto.EncodeCommand(fsproto.CmdPwd))
	return string(payload), err
}

// Ls returns the raw, already-formatted directory listing.
func (c *Client) Ls(path string) (string, error) {
	payload, err := c.send(fsproto.EncodeCommand(fsproto.CmdLs, path))
	return string(payload), err
}

// Cat reads an entire file's contents.
func (c *Client) Cat(path string) ([]byte, error) {
	return c.send(fsproto.EncodeCommand(fsproto.CmdCat, path))
}

// Write truncates path and writes data from offset 0, matching the
// reference shell's "w <name> <len> <data>" command.
func (c *Client) Write(path string, data []byte) error {
	_, err := c.send(fsproto.EncodeWriteCommand(path, data))
	return err
}

// Insert splices data into path immediately before byte offset pos.
func (c *Client) Insert(path string, pos int, data []byte) error {
	_, err := c.send(fsproto.EncodeInsertCommand(path, pos, data))
	return err
}

// Delete removes the byte range [pos, pos+length) from path.
func (c *Client) Delete(path string, pos, length int) error {
	_, err := c.send(fsproto.EncodeDeleteCommand(path, pos, length))
	return err
}

// Exit sends the exit command and returns the server's farewell message.
func (c *Client) Exit() (string, error) {
	payload, err := c.send(fsproto.EncodeCommand(fsproto.CmdExit))
	return string(payload), err
}

// WriteString is a convenience wrapper for Write with string data.
func (c *Client) WriteString(path string, data string) error {
	return c.Write(path, []byte(data))
}

// Prompt renders the reference client's dynamic prompt for an interactive
// shell: "<user>@fs:<path>$ ".
func Prompt(user, path string) string {
	return fmt.Sprintf("%s@fs:%s$ ", user, path)
}
