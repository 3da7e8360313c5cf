package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/kvsqlite/pagefs"
)

// session is a connection to a database of the VFS, which executes
// statements and meta-commands and writes their output to |out|.
type session struct {
	vfs string
	out io.Writer

	name string
	db   *sql.DB
}

// dsn returns the data source name of database |name| of VFS |vfs|.
func dsn(vfs, name string) string {
	return "file:" + url.PathEscape(name) + "?" + url.Values{"vfs": {vfs}}.Encode()
}

// open the database |name|, replacing a currently open database.
// The connection is verified to be served by the VFS.
func (s *session) open(ctx context.Context, name string) error {
	var db, err = sql.Open("sqlite3", dsn(s.vfs, name))
	if err != nil {
		return errors.WithMessagef(err, "opening %q", name)
	}
	// Connections of a process share the lock state of its VFS handles.
	// A single connection avoids lock waits between connections of the pool.
	db.SetMaxOpenConns(1)

	var probe string
	if err = db.QueryRowContext(ctx, "PRAGMA "+pagefs.ProbePragma).Scan(&probe); err != nil || probe != pagefs.ProbeValue {
		_ = db.Close()
		return fmt.Errorf("database %q is not served by VFS %q (probe %q, err %v)", name, s.vfs, probe, err)
	}

	if s.db != nil {
		_ = s.db.Close()
	}
	s.name, s.db = name, db

	log.WithFields(log.Fields{"database": name, "vfs": s.vfs}).Debug("opened database")
	return nil
}

func (s *session) close() error {
	if s.db == nil {
		return nil
	}
	var err = s.db.Close()
	s.db = nil
	return err
}

// prompt of the shell, named by the stem of the open database.
func (s *session) prompt() string {
	var stem = strings.TrimSuffix(filepath.Base(s.name), filepath.Ext(s.name))
	if stem == "" || stem == "." {
		stem = "db"
	}
	return "sql:" + stem + "> "
}

// meta executes a '.' command, returning false if the session should end.
func (s *session) meta(ctx context.Context, line string) bool {
	var fields = strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch strings.ToLower(fields[0]) {
	case ".help":
		fmt.Fprint(s.out, metaHelp)
	case ".quit", ".exit":
		return false
	case ".open":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "Usage: .open <file>")
		} else if err := s.open(ctx, fields[1]); err != nil {
			fmt.Fprintln(s.out, "Error:", err)
		} else {
			fmt.Fprintf(s.out, "Opened database: %s\n", fields[1])
		}
	case ".tables":
		s.report(s.query(ctx, `SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`))
	case ".schema":
		if len(fields) > 1 {
			s.report(s.query(ctx, `SELECT name, sql FROM sqlite_master WHERE type='table' AND name = ?`, fields[1]))
		} else {
			s.report(s.query(ctx, `SELECT name, sql FROM sqlite_master WHERE type='table' ORDER BY name`))
		}
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\nType .help for available commands\n", fields[0])
	}
	return true
}

const metaHelp = `
Available commands:
  .help           Show this help
  .quit           Exit the shell
  .exit           Exit the shell
  .open <file>    Open a database file
  .tables         List all tables
  .schema [table] Show table schema

Enter SQL statements to execute them.
Use semicolon (;) to end statements.
`

func (s *session) report(err error) {
	if err != nil {
		fmt.Fprintln(s.out, "Error:", err)
	}
}

// query executes |stmt|. If it produces columns, its rows are written as a
// table. Otherwise "OK" is written once it completes.
func (s *session) query(ctx context.Context, stmt string, args ...interface{}) error {
	if s.db == nil {
		return errors.New("no database is open")
	}
	var rows, err = s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	} else if len(columns) == 0 {
		for rows.Next() {
		}
		if err = rows.Err(); err == nil {
			fmt.Fprintln(s.out, "OK")
		}
		return err
	}

	var values = make([]sql.NullString, len(columns))
	var dest = make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	var table = tablewriter.NewWriter(s.out)
	var header = make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	table.Header(header...)

	var count int
	for rows.Next() {
		if err = rows.Scan(dest...); err != nil {
			return err
		}
		var row = make([]string, len(values))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			} else {
				row[i] = "NULL"
			}
		}
		if err = table.Append(row); err != nil {
			return err
		}
		count++
	}
	if err = rows.Err(); err != nil {
		return err
	}

	if count == 0 {
		fmt.Fprintln(s.out, "No rows returned.")
		return nil
	}
	return table.Render()
}

// splitStatements splits |text| into complete statements, each terminated
// by a semicolon outside of quotes and comments. Trailing text which isn't
// terminated is returned as |rest|.
func splitStatements(text string) (stmts []string, rest string) {
	var start int
	var quote byte
	var lineComment, blockComment bool

	for i := 0; i < len(text); i++ {
		var c = text[i]

		switch {
		case lineComment:
			if c == '\n' {
				lineComment = false
			}
		case blockComment:
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				blockComment = false
				i++
			}
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '[':
			quote = ']'
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			lineComment = true
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			blockComment = true
			i++
		case c == ';':
			if stmt := strings.TrimSpace(text[start : i+1]); stmt != ";" {
				stmts = append(stmts, stmt)
			}
			start = i + 1
		}
	}
	return stmts, strings.TrimSpace(text[start:])
}
