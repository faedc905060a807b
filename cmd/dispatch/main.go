// Command dispatch submits transactions to a node and publishes
// intents to an orderbook.
//
//	dispatch tx <path> [--data <hex>] [--dry-run] [--nonce N] [--node addr]
//	dispatch intent <orderbook-address> <data-path>
//
// The raw peer response is printed to stdout as JSON. Errors go to
// stderr and the exit code is 1.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/client"
	"github.com/blockberries/dispatch/config"
	"github.com/blockberries/dispatch/logging"
	"github.com/blockberries/dispatch/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newApp(stdout, stderr).execute(ctx, args)
}

// app holds the process-wide dependencies. Tests swap the factories
// for mocks.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	dialNode   client.NodeFactory
	dialGossip client.GossipFactory
	now        func() time.Time

	configPath string
	logLevel   string
	cfg        config.Config
	log        zerolog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		dialNode:   client.DialNode,
		dialGossip: client.DialGossip,
		now:        time.Now,
		log:        logging.Nop(),
	}
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.newRootCmd()
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dispatch",
		Short:         "Submit transactions and publish intents",
		Long:          "Submit binary transactions to a consensus node (dry run or commit) and publish trade intents to an orderbook gossip peer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Anything that is not a known subcommand prints help.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.HasParent() {
				return nil
			}
			return a.setup()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")

	root.AddCommand(a.newTxCmd(), a.newIntentCmd())
	return root
}

// setup loads .env, the config file and the logger.
func (a *app) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := a.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	lvl, ok := logging.ParseLevel(level)
	if !ok && level != "" {
		return fmt.Errorf("unknown log level %q", level)
	}
	a.log = logging.New(a.stderr, lvl, "dispatch")
	return nil
}

func (a *app) newTxCmd() *cobra.Command {
	var (
		dataHex string
		dryRun  bool
		nonce   uint64
		node    string
	)
	cmd := &cobra.Command{
		Use:   "tx <path>",
		Short: "Send a transaction to a node",
		Long:  "Read transaction code from <path> and send it to a node. With --dry-run the node only simulates it; otherwise it is broadcast once and committed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := types.Commit
			if dryRun {
				mode = types.DryRun
			}
			if !cmd.Flags().Changed("nonce") && mode == types.Commit {
				nonce = uint64(a.now().UnixNano())
			}
			tx, err := client.LoadTx(args[0], dataHex, nonce)
			if err != nil {
				return err
			}
			if node == "" {
				node = a.cfg.Node
			}
			return a.sendTx(cmd.Context(), node, tx, mode)
		},
	}
	cmd.Flags().StringVar(&dataHex, "data", "", "hex-encoded transaction data")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "simulate without committing")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "transaction nonce (default: current time in ns for commits)")
	cmd.Flags().StringVar(&node, "node", "", "node address (default "+client.DefaultNodeAddr+")")
	return cmd
}

func (a *app) sendTx(ctx context.Context, node string, tx types.Tx, mode types.DispatchMode) error {
	d := client.NewTxDispatcher(a.dialNode, client.Config{
		BroadcastMode: a.cfg.BroadcastMode,
		PollInterval:  a.cfg.PollInterval,
		PollTimeout:   a.cfg.PollTimeout,
		Timeout:       a.cfg.Timeout,
	}, a.log)

	attempts := 1
	if mode == types.DryRun {
		attempts = a.cfg.DryRunAttempts
	}

	var (
		resp client.Response
		err  error
	)
	for i := 1; i <= attempts; i++ {
		resp, err = d.Submit(ctx, node, tx, mode)
		if _, transient := dispatch.IsTransport(err); !transient || i == attempts {
			break
		}
		a.log.Warn().Err(err).Int("attempt", i).Msg("dry run failed, retrying")
	}

	if resp.Query != nil || resp.Broadcast != nil {
		if perr := a.print(resp); perr != nil {
			return perr
		}
	}
	return err
}

func (a *app) newIntentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intent <orderbook-address> <data-path>",
		Short: "Publish an intent to an orderbook",
		Long:  "Read an opaque intent payload from <data-path> and publish it to the orderbook at <orderbook-address>. An empty address selects the configured orderbook; zmq://host:port uses ZeroMQ.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			if addr == "" {
				addr = a.cfg.Orderbook
			}
			msg, err := client.LoadIntent(args[1], a.now())
			if err != nil {
				return err
			}

			p := client.NewIntentPublisher(a.dialGossip, a.cfg.Timeout, a.log)
			ack, err := p.Publish(cmd.Context(), addr, msg)
			if _, rejected := dispatch.IsGossipRejected(err); err == nil || rejected {
				if perr := a.print(intentOutput{Message: msg, Ack: ack}); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

type intentOutput struct {
	Message types.GossipMessage `json:"message"`
	Ack     types.Ack           `json:"ack"`
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
