package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wesleyorama2/clientbench/internal/logging"
	"github.com/wesleyorama2/clientbench/internal/output"
)

var version = "0.1.0"

// EnvPrefix prefixes the environment variables that may replace any flag,
// e.g. CLIENTBENCH_FETCH_SIZE for --fetch-size.
const EnvPrefix = "CLIENTBENCH"

// errFailed signals a run that completed but did not succeed. Its details
// have already been reported.
var errFailed = errors.New("benchmark failed")

// app carries what every command needs once flags are parsed.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer

	logger    *logrus.Logger
	formatter *output.Formatter
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:     "clientbench",
		Short:   "Measure the client-side latency of a database query",
		Version: version,
		Long: `clientbench executes one query over and over for a fixed time and writes the
latency of every execution, in nanoseconds, one per line. Workers never wait
for output I/O, so what is measured is the database and its client driver.

Benchmark options are embedded in the query file as @KEYWORD@ or
@KEYWORD=n@, typically inside a comment:

  -- @PARALLEL=4@ @PREPARE@ @EXPECTED=100@
  SELECT * FROM orders LIMIT 100`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.String("log-level", "info", "Diagnostic log level (debug, info, warn, error)")
	pf.String("log-format", logging.FormatText, "Diagnostic log format (text or json)")
	pf.Bool("no-color", false, "Disable colored output")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newSuiteCmd(a))
	cmd.AddCommand(newSummarizeCmd(a))
	return cmd
}

// setup binds flags and environment and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := bindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}

	stderrFile, _ := a.stderr.(*os.File)
	color := output.ColorEnabled(stderrFile, a.v.GetBool("no-color"))

	logger, err := logging.New(a.stderr, a.v.GetString("log-level"), a.v.GetString("log-format"), color)
	if err != nil {
		return err
	}
	a.logger = logger
	a.formatter = output.NewFormatter(!color)
	return nil
}

// bindFlags makes every flag of fs readable through v, with an environment
// variable taking precedence over the flag default.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return errors.Wrap(v.BindPFlags(fs), "bind flags")
}

// Execute runs the command line of the process.
func Execute() error {
	return ExecuteArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs a command line with explicit streams. Samples and
// listings go to stdout; diagnostics go to stderr.
func ExecuteArgs(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil && !errors.Is(err, errFailed) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return err
}
