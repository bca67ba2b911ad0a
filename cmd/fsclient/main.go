package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugo0713/netfs/pkg/fsclient"
)

var rootCmd = &cobra.Command{
	Use:   "fsclient <addr>",
	Short: "fsclient is an interactive shell for the filesystem server protocol",
	Args:  cobra.ExactArgs(1),
	RunE:  runShell,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const helpText = `Available commands:
  mk <name>             create file
  mkdir <name>          create directory
  rm <name>             remove file
  rmdir <name>          remove directory
  cd <path>             change directory
  ls [path]             list directory contents
  cat <name>            display file contents
  w <name> <len> <data> truncate and write data
  i <name> <pos> <len> <data>  insert data before offset pos
  d <name> <pos> <len>  delete a byte range
  login <name>          login as user
  adduser <name>        add new user (admin only)
  deluser <name>        remove a user (admin only)
  pwd                   show current directory
  e                     exit
  help                  show this help`

func runShell(cmd *cobra.Command, args []string) error {
	addr := args[0]
	fmt.Printf("Connecting to file system server at %s\n", addr)
	c, err := fsclient.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()
	fmt.Println("Connected successfully!")
	fmt.Println("Type 'help' for available commands or 'e' to exit.")

	user := "guest"
	scanner := bufio.NewScanner(os.Stdin)

	for {
		path, _ := c.Pwd()
		if path == "" {
			path = "/"
		}
		fmt.Print(fsclient.Prompt(user, path))

		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "help" {
			fmt.Println(helpText)
			continue
		}
		if line == "clear" {
			fmt.Print("\033[H\033[2J")
			continue
		}

		fields := strings.Fields(line)
		cmdName := fields[0]

		payload, err := c.Raw(line)
		if err != nil {
			fmt.Printf("Error: %s\n", err.Error())
			continue
		}
		if len(payload) > 0 {
			fmt.Printf("YES\n%s\n", payload)
		} else {
			fmt.Println("YES")
		}

		if cmdName == "login" && len(fields) > 1 {
			user = fields[1]
		}
		if cmdName == "e" {
			break
		}
	}

	fmt.Println("\nDisconnected from server.")
	return nil
}
