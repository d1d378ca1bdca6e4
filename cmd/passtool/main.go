// Command passtool prints the bcrypt hash of a password read from the
// terminal, for provisioning user accounts.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var cost = flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	return pass, err
}

func do() error {
	pass, err := readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("while reading password: %w", err)
	}
	if len(pass) == 0 {
		return fmt.Errorf("password must not be empty")
	}

	again, err := readPassword("Again: ")
	if err != nil {
		return fmt.Errorf("while reading password: %w", err)
	}
	if !bytes.Equal(pass, again) {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword(pass, *cost)
	if err != nil {
		return fmt.Errorf("while hashing password: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

func main() {
	flag.Parse()

	if err := do(); err != nil {
		glog.Exitf("Error: %v", err)
	}
}
