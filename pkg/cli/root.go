package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

// options are the persistent flags shared by every command.
type options struct {
	server  string
	output  string
	timeout time.Duration
}

func (o *options) client() *Client {
	return NewClient(o.server, o.timeout)
}

func (o *options) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// NewRootCommand creates the matsecomctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "matsecomctl",
		Short: "Operate a matsecom usage engine",
		Long: `matsecomctl talks to a running matsecom server.

It registers subscribers, simulates sessions and bills them.

Examples:
  matsecomctl subscribers import subscribers.csv
  matsecomctl simulate --subscriber 1 --service BN --duration 60
  matsecomctl invoices create 1`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputTable, outputJSON:
				return nil
			}
			return fmt.Errorf("unknown output format %q (must be %s or %s)", opts.output, outputTable, outputJSON)
		},
	}

	server := os.Getenv("MATSECOM_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "matsecom server URL (env MATSECOM_SERVER)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table or json")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "request timeout")

	root.AddCommand(newSubscribersCommand(opts))
	root.AddCommand(newSimulateCommand(opts))
	root.AddCommand(newSessionsCommand(opts))
	root.AddCommand(newInvoicesCommand(opts))
	root.AddCommand(newCatalogCommand(opts))

	return root
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
