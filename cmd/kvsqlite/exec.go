package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	mbp "go.gazette.dev/kvsqlite/mainboilerplate"
)

type cmdExec struct {
	DatabaseConfig
	ContinueOnError bool `long:"continue-on-error" description:"Execute remaining statements after a statement fails"`
}

func (cmd *cmdExec) Execute(args []string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()

	var ctx = context.Background()
	var s, _ = startup(ctx, cmd.Database)
	defer s.Close()

	var sess = &session{vfs: Config.VFS.Name, out: os.Stdout}
	mbp.Must(sess.open(ctx, cmd.Database), "failed to open database")
	defer sess.close()

	var text string
	if len(args) != 0 {
		text = strings.Join(args, "\n")
	} else if b, err := io.ReadAll(os.Stdin); err != nil {
		return errors.WithMessage(err, "reading stdin")
	} else {
		text = string(b)
	}
	return runStatements(ctx, sess, text, cmd.ContinueOnError)
}

// runStatements executes each statement of |text|. A final statement which
// lacks a terminating semicolon is executed as well.
func runStatements(ctx context.Context, sess *session, text string, continueOnError bool) error {
	var stmts, rest = splitStatements(text)
	if rest != "" {
		stmts = append(stmts, rest)
	}

	var failed int
	for i, stmt := range stmts {
		if err := sess.query(ctx, stmt); err == nil {
			continue
		} else if !continueOnError {
			return errors.WithMessagef(err, "statement %d", i+1)
		} else {
			fmt.Fprintf(sess.out, "Error: statement %d: %s\n", i+1, err)
			failed++
		}
	}
	if failed != 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(stmts))
	}
	return nil
}
