package mainboilerplate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// Version and BuildDate of the program, set at build time with -ldflags "-X ...".
var (
	Version   = "development"
	BuildDate = "unknown"
)

// ConfigRootEnv names an environment variable holding a directory which is
// searched for the INI file before any other.
const ConfigRootEnv = "KVSQLITE_CONFIG_ROOT"

// ConfigFile is the path of the INI file applied by the last MustParseConfig
// or ParseConfig, or empty if none was found.
var ConfigFile string

// ConfigSearchPaths returns the candidate paths of INI file |configName|,
// in order of precedence:
//   - $KVSQLITE_CONFIG_ROOT, if set.
//   - The current working directory.
//   - ~/.config/kvsqlite (under the user's $HOME or %UserProfile% directory).
func ConfigSearchPaths(configName string) []string {
	var out []string
	if root := os.Getenv(ConfigRootEnv); root != "" {
		out = append(out, filepath.Join(root, configName))
	}
	out = append(out, configName)

	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".config", "kvsqlite", configName))
	}
	return out
}

// ParseConfig parses |parser| from the combination of the first INI file of
// ConfigSearchPaths which exists, configured environment bindings, and
// explicit |args|. Flags take precedence over the INI file. Options of the
// INI file which |parser| doesn't know are ignored, so that one file may
// configure several tools.
func ParseConfig(parser *flags.Parser, configName string, args []string) error {
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown

	ConfigFile = ""
	var iniParser = flags.NewIniParser(parser)

	for _, path := range ConfigSearchPaths(configName) {
		if err := iniParser.ParseFile(path); err == nil {
			ConfigFile = path
			break
		} else if !os.IsNotExist(err) {
			parser.Options = origOptions
			return errors.WithMessagef(err, "parsing %s", path)
		}
	}
	parser.Options = origOptions

	var _, err = parser.ParseArgs(args)
	return err
}

// MustParseConfig requires that ParseConfig succeed with the process arguments.
// On failure it exits, after printing usage if that's what was asked for.
func MustParseConfig(parser *flags.Parser, configName string) {
	var err = ParseConfig(parser, configName, os.Args[1:])
	if err == nil {
		return
	}
	var flagErr, ok = errors.Cause(err).(*flags.Error)
	if !ok {
		// A malformed INI file, or an error returned by a command.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		// The configuration struct itself is malformed.
		panic(err)

	case flags.ErrCommandRequired, flags.ErrHelp:
		if flagErr.Type == flags.ErrCommandRequired || parser.Options&flags.PrintErrors == 0 {
			os.Stderr.WriteString("\n")
			parser.WriteHelp(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "\n%s\n", versionLine())
		os.Exit(1)

	default:
		// go-flags has already printed the input error.
		os.Exit(1)
	}
}

// AddPrintConfigCmd to the Parser. The "print-config" command writes the
// combined runtime configuration in INI format, noting the file it was
// loaded from. Its output is itself a valid |configName|.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	_, err := parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.
`, &printConfig{Parser: parser, configName: configName})
	Must(err, "failed to add print-config command")
}

type printConfig struct {
	*flags.Parser `no-flag:"t"`
	configName    string
}

func (p printConfig) Execute([]string) error {
	if ConfigFile != "" {
		fmt.Fprintf(os.Stdout, "; Loaded from %s\n", ConfigFile)
	} else {
		fmt.Fprintf(os.Stdout, "; No configuration file found. Searched:\n")
		for _, path := range ConfigSearchPaths(p.configName) {
			fmt.Fprintf(os.Stdout, ";   %s\n", path)
		}
	}
	var ini = flags.NewIniParser(p.Parser)
	ini.Write(os.Stdout, flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}

// AddVersionCmd to the Parser. The "version" command prints the Version and
// BuildDate of the program.
func AddVersionCmd(parser *flags.Parser) {
	_, err := parser.AddCommand("version", "Print version and exit", "", &printVersion{})
	Must(err, "failed to add version command")
}

type printVersion struct{}

func (printVersion) Execute([]string) error {
	fmt.Fprintln(os.Stdout, versionLine())
	return nil
}

func versionLine() string {
	return fmt.Sprintf("kvsqlite %s, built at %s.", Version, BuildDate)
}
