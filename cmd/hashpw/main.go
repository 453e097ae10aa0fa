// Command hashpw reads a password from the terminal without echo and prints
// its bcrypt digest, for seeding accounts by hand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errEmptyPassword = errors.New("empty password")

func main() {
	cost := flag.Int("cost", auth.DefaultBcryptCost, "bcrypt cost")
	flag.Parse()

	if err := run(context.Background(), os.Stdout, os.Stderr, *cost); err != nil {
		log.Fatalf("%v", err)
	}
}

// run prompts on prompt and writes the digest to out.
func run(ctx context.Context, out, prompt io.Writer, cost int) error {
	fmt.Fprint(prompt, "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if len(pw) == 0 {
		return errEmptyPassword
	}

	digest, err := auth.NewBcryptHasher(cost, 1).Hash(ctx, string(pw))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, digest)
	return err
}
