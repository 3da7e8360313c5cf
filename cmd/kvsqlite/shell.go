package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	mbp "go.gazette.dev/kvsqlite/mainboilerplate"
)

type cmdShell struct {
	DatabaseConfig
}

func (cmd *cmdShell) Execute([]string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics)()

	var ctx = context.Background()
	var s, _ = startup(ctx, cmd.Database)
	defer s.Close()

	var sess = &session{vfs: Config.VFS.Name, out: os.Stdout}
	mbp.Must(sess.open(ctx, cmd.Database), "failed to open database")
	defer sess.close()

	var line = liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)

	fmt.Fprintf(os.Stdout, "kvsqlite %s over %s. Enter .help for usage hints.\n", mbp.Version, s.Provider())
	return runShell(ctx, sess, line.Prompt, line.AppendHistory)
}

// runShell reads input lines with |prompt| until end of input or a '.quit'.
// Meta-commands are executed as they're read. SQL is accumulated across
// lines and executed as each statement is terminated.
func runShell(ctx context.Context, sess *session, prompt func(string) (string, error), history func(string)) error {
	var pending string

	for {
		var p = sess.prompt()
		if pending != "" {
			p = strings.Repeat(" ", len(p)-5) + "...> "
		}

		var input, err = prompt(p)
		if err == liner.ErrPromptAborted {
			pending = ""
			continue
		} else if err == io.EOF {
			fmt.Fprintln(sess.out)
			return nil
		} else if err != nil {
			return err
		}

		if pending == "" && strings.HasPrefix(strings.TrimSpace(input), ".") {
			history(input)
			if !sess.meta(ctx, input) {
				fmt.Fprintln(sess.out, "Goodbye!")
				return nil
			}
			continue
		}

		var stmts []string
		stmts, pending = splitStatements(strings.TrimSpace(pending + "\n" + input))

		for _, stmt := range stmts {
			history(stmt)
			sess.report(sess.query(ctx, stmt))
		}
	}
}
