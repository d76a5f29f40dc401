// todoctl is the admin tool for the todo server: password hashing, user
// creation and schema migrations against the configured storage.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/devtitozzzzg/todo/internal/app"
	"github.com/devtitozzzzg/todo/internal/config"
	"github.com/devtitozzzzg/todo/internal/service"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

const usage = `usage: todoctl <command> [flags]

commands:
  hash [--cost N] [password]       print a bcrypt hash (reads stdin when no password given)
  useradd --username NAME [--password PW]
                                   create a user in the configured storage
  migrate                          apply pending schema migrations
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "todoctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("no command given")
	}
	switch args[0] {
	case "hash":
		return runHash(args[1:], stdin, stdout)
	case "useradd":
		return runUserAdd(ctx, args[1:], stdin, stdout)
	case "migrate":
		return runMigrate(ctx, args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runHash(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet("hash", pflag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password := fs.Arg(0)
	if password == "" {
		var err error
		if password, err = readLine(stdin); err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), *cost)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	fmt.Fprintln(stdout, string(h))
	return nil
}

func runUserAdd(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := pflag.NewFlagSet("useradd", pflag.ContinueOnError)
	username := fs.StringP("username", "u", "", "username (1 to 30 characters)")
	password := fs.StringP("password", "p", "", "password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		var err error
		if *password, err = readLine(stdin); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	st, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := service.NewUserService(st.Users).Register(ctx, *username, *password)
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		return fmt.Errorf("username %q already taken", *username)
	case errors.Is(err, service.ErrValidation):
		return fmt.Errorf("username must be 1 to 30 characters and password non-empty")
	case err != nil:
		return err
	}
	fmt.Fprintf(stdout, "created user %q (id %d)\n", u.Username, u.ID)
	return nil
}

func runMigrate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	n, err := app.Migrate(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "applied %d migration(s) to %s\n", n, cfg.Storage.Driver)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
