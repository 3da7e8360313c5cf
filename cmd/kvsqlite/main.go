package main

import (
	"context"

	"github.com/jessevdk/go-flags"
	mbp "go.gazette.dev/kvsqlite/mainboilerplate"
	"go.gazette.dev/kvsqlite/pagefs"
	"go.gazette.dev/kvsqlite/store"
)

const iniFilename = "kvsqlite.ini"

// Config is the top-level configuration object of kvsqlite.
var Config = new(struct {
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
	Store       mbp.StoreConfig       `group:"Store" namespace:"store" env-namespace:"STORE"`
	VFS         mbp.VFSConfig         `group:"VFS" namespace:"vfs" env-namespace:"VFS"`
})

// DatabaseConfig selects the database a command operates on.
type DatabaseConfig struct {
	Database string `long:"database" short:"d" env:"DATABASE" default:"main.db" description:"Name of the database within the store"`
}

// startup opens the store and registers the VFS over it. The database named
// by |db| is preloaded into the cache, if so configured.
func startup(ctx context.Context, db string) (store.Store, *pagefs.FS) {
	mbp.InitLog(Config.Log)

	var s = Config.Store.MustOpen(ctx)
	var fs = Config.VFS.MustRegister(ctx, s)
	Config.Store.MaybePreload(ctx, fs, db)

	return s, fs
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.AddVersionCmd(parser)

	parser.LongDescription = `kvsqlite runs SQLite databases whose pages are stored in a key/value store.

	See --help pages of each sub-command for documentation and usage examples.
	Optionally configure kvsqlite with a '` + iniFilename + `' file in the current working directory,
	with '~/.config/kvsqlite/` + iniFilename + `', or within $` + mbp.ConfigRootEnv + `.
	Use the 'print-config' sub-command to inspect the tool's current configuration.
	`

	_ = mustAddCmd(parser.Command, "shell", "Interactive SQL shell", `
Start an interactive SQL shell over a database of the configured store.

Statements are terminated by a semicolon, and may span lines. Meta-commands
begin with a '.'; use '.help' to list them.
`, &cmdShell{})

	_ = mustAddCmd(parser.Command, "exec", "Execute SQL statements", `
Execute SQL statements against a database of the configured store, printing
the rows of each query as a table.

Statements are taken from arguments or, if there are none, from stdin:
>    kvsqlite exec --store.url rocksdb:///var/lib/pages "SELECT COUNT(*) FROM kv;"
>    kvsqlite exec --database app.db < schema.sql
`, &cmdExec{})

	mbp.MustParseConfig(parser, iniFilename)
}

func mustAddCmd(cmd *flags.Command, name, short, long string, cfg interface{}) *flags.Command {
	cmd, err := cmd.AddCommand(name, short, long, cfg)
	mbp.Must(err, "failed to add command")
	return cmd
}
