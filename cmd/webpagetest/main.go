package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/studiowebux/webpagetest/internal/cli"
	"github.com/studiowebux/webpagetest/internal/config"
	"github.com/studiowebux/webpagetest/internal/filter"
	"github.com/studiowebux/webpagetest/internal/history"
	"github.com/studiowebux/webpagetest/internal/logger"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/server"
	"github.com/studiowebux/webpagetest/internal/types"
	"github.com/studiowebux/webpagetest/internal/wpt"
)

var (
	version = "0.1.0"
)

// Flags shared by every command
var (
	flagFormat string
	flagQuery  string
	flagOutput string
	flagDebug  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webpagetest",
	Short: "WebPageTest API client and proxy",
	Long: `webpagetest runs and inspects WebPageTest tests from the command line.

Every command maps to one WebPageTest API call. Options are sent as query
parameters; --dryrun prints the request URL instead of calling the server.

Examples:
  webpagetest test https://example.com -l Dulles -r 3 --poll
  webpagetest results 120816_V2_2 --specs specs.json --reporter tap
  webpagetest waterfall 120816_V2_2 --output waterfall.png
  webpagetest status 120816_V2_2 --query statusText
  webpagetest listen localhost:7791`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	for _, opt := range mapping.Common.Options {
		addFlag(rootCmd.PersistentFlags(), opt, map[string]bool{})
	}
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", cli.FormatJSON, "Output format (json/yaml/text)")
	rootCmd.PersistentFlags().StringVar(&flagQuery, "query", "", "JMESPath query or $(command) applied to the output")
	rootCmd.PersistentFlags().StringVar(&flagOutput, "output", "", "Save the output to a file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Log requests and internals to stderr")

	for _, command := range mapping.Commands {
		rootCmd.AddCommand(newCommand(command))
	}
}

// newCommand builds the subcommand of a schema command with one flag per
// option. The first namespace defining a long name or a short alias keeps it.
func newCommand(command *mapping.Command) *cobra.Command {
	use := command.Name
	args := cobra.NoArgs
	if command.Param != "" {
		if command.Optional {
			use += " [" + command.Param + "]"
			args = cobra.MaximumNArgs(1)
		} else {
			use += " <" + command.Param + ">"
			args = cobra.ExactArgs(1)
		}
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: describe(command.Info),
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, command, args)
		},
	}

	taken := map[string]bool{"h": true, "help": true}
	for _, opt := range mapping.Common.Options {
		taken[opt.Flag] = true
		if opt.Short != "" {
			taken[opt.Short] = true
		}
	}
	for _, name := range []string{"format", "query", "output", "debug"} {
		taken[name] = true
	}
	for _, ns := range append(append([]*mapping.Namespace{}, command.Namespaces...), command.NoKey...) {
		for _, opt := range ns.Options {
			addFlag(cmd.Flags(), opt, taken)
		}
	}
	return cmd
}

// addFlag registers opt unless its long name is taken; the short alias is
// only registered when free
func addFlag(flags *pflag.FlagSet, opt *mapping.Option, taken map[string]bool) {
	if taken[opt.Flag] {
		return
	}
	taken[opt.Flag] = true

	short := opt.Short
	if taken[short] {
		short = ""
	}
	if short != "" {
		taken[short] = true
	}

	usage := describe(opt.Info)
	switch opt.Kind {
	case mapping.KindFlag:
		flags.BoolP(opt.Flag, short, false, usage)
	case mapping.KindList:
		flags.StringArrayP(opt.Flag, short, nil, usage)
	default:
		flags.StringP(opt.Flag, short, "", usage)
		if opt.Optional {
			flags.Lookup(opt.Flag).NoOptDefVal = optionalDefault(opt)
		}
	}
}

// optionalDefault is the value of an optional-value flag given bare: a zero
// poll interval and an empty wait address select the configured defaults
func optionalDefault(opt *mapping.Option) string {
	if opt.Name == "pollResults" {
		return "0"
	}
	return ":"
}

// describe fills the default placeholder of help texts
func describe(info string) string {
	if !strings.Contains(info, "%s") {
		return info
	}
	if strings.Contains(info, "server URL") {
		return fmt.Sprintf(info, config.DefaultServer)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return fmt.Sprintf(info, hostname)
}

// input collects the flags set on the command line keyed by long name
func input(cmd *cobra.Command) mapping.Input {
	in := mapping.Input{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "format", "query", "output", "debug":
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			in[f.Name] = sv.GetSlice()
			return
		}
		in[f.Name] = f.Value.String()
	})
	return in
}

// validateQuery rejects a --query that is neither $(command) nor JMESPath
func validateQuery(query string) error {
	if query == "" || filter.IsShellCommand(query) || filter.IsValidJMESPath(query) {
		return nil
	}
	return fmt.Errorf("invalid query %q: expected a JMESPath expression or $(command)", query)
}

func run(cmd *cobra.Command, command *mapping.Command, args []string) error {
	if err := validateQuery(flagQuery); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Debug || flagDebug)
	defer log.Sync()
	if cfg.Path != "" {
		log.Debug("loaded config", zap.String("path", cfg.Path))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	in := input(cmd)

	if command.Method == mapping.MethodListen {
		return listen(ctx, cfg, log, mapping.Resolve(command, in), arg)
	}

	client, err := wpt.New(wpt.Config{
		Server:       cfg.Server,
		APIKey:       cfg.APIKey,
		Timeout:      cfg.Timeout,
		Logger:       log,
		PollInterval: cfg.PollInterval,
		WaitPort:     cfg.WaitPort,
		OnListen: func(info types.ListenInfo) {
			fmt.Fprintf(os.Stderr, "waiting for test results on %s\n", info.URL)
		},
	})
	if err != nil {
		return err
	}

	code := cli.NewRunner(client).Run(ctx, cli.RunOptions{
		Command:  command.Name,
		Arg:      arg,
		Input:    in,
		Format:   flagFormat,
		Query:    flagQuery,
		Output:   flagOutput,
		Reporter: cfg.Reporter,
	})
	if code != 0 {
		log.Sync()
		os.Exit(min(code, 255))
	}
	return nil
}

// listen serves the local proxy on addr (or the configured listen address)
// until interrupted
func listen(ctx context.Context, cfg *config.Config, log *zap.Logger, opts mapping.Options, addr string) error {
	if addr == "" {
		addr = cfg.Listen
	}
	host, port, err := server.ParseAddr(addr)
	if err != nil {
		return err
	}

	calls, err := history.NewManager(":memory:")
	if err != nil {
		return err
	}
	defer calls.Close()

	client, err := wpt.New(wpt.Config{
		Server:   cfg.Server,
		APIKey:   cfg.APIKey,
		Timeout:  cfg.Timeout,
		Logger:   log,
		Recorder: calls,
	})
	if err != nil {
		return err
	}

	srv := server.NewServer(&server.Config{
		Host:     host,
		Port:     port,
		KeyFile:  opts.String("key"),
		CertFile: opts.String("cert"),
	}, client, calls, log)
	return cli.Listen(ctx, srv, os.Stdout)
}
