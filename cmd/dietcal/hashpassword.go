package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"dietcal/internal/auth"
)

// hashPassword handles the hash-password subcommand: it prompts for a
// password twice and prints a basic_auth block for the config file.
func hashPassword(args []string) int {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	username := fs.String("user", "", "Username to print in the config block")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dietcal hash-password [-user NAME]\n\n")
		fmt.Fprintf(os.Stderr, "Prints an argon2id hash for basic_auth.password_hash.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	stdin := int(os.Stdin.Fd())
	var password, confirm string
	if term.IsTerminal(stdin) {
		var err error
		if password, err = readMasked(stdin, "Enter password:   "); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			return 1
		}
		if confirm, err = readMasked(stdin, "Confirm password: "); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password confirmation: %v\n", err)
			return 1
		}
	} else {
		// Piped input: a single line, no confirmation.
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			return 1
		}
		password = strings.TrimRight(line, "\r\n")
		confirm = password
	}

	if password == "" {
		fmt.Fprintln(os.Stderr, "Password cannot be empty")
		return 1
	}
	if password != confirm {
		fmt.Fprintln(os.Stderr, "Passwords do not match")
		return 1
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *username == "" {
		fmt.Println(hash)
		return 0
	}
	fmt.Printf("basic_auth:\n  username: %q\n  password_hash: %q\n", *username, hash)
	return 0
}

// readMasked reads a password without echo.
func readMasked(fd int, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
