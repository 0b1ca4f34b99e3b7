package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/cryptox"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// promptEncodedPassword reads a password from the terminal without echo and
// returns its argon2id encoding. The plaintext is wiped before returning.
func promptEncodedPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)

	return cryptox.EncodePassword(pw)
}

// resolveEncodedPassword prefers an already-encoded value passed via flag
// (for scripted use) and falls back to an interactive prompt.
func resolveEncodedPassword(encodedFlag string) (string, error) {
	if encodedFlag != "" {
		return encodedFlag, nil
	}
	return promptEncodedPassword()
}
