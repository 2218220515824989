package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"hostel-hub.backend/pkg/crypto"
)

var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
	generateHash = crypto.HashPassword
)

// resolvePassword takes the password from args, or prompts for it without echo.
func resolvePassword(args []string, in *os.File, prompt io.Writer) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	fd := int(in.Fd())
	if !isTerminal(fd) {
		return "", errors.New("no password given and stdin is not a terminal")
	}
	fmt.Fprint(prompt, "Password: ")
	raw, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func run(args []string, in *os.File, out, prompt io.Writer) error {
	password, err := resolvePassword(args, in, prompt)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password must not be empty")
	}
	hash, err := generateHash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(out, hash)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}
