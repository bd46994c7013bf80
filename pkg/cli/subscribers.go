package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/matsecom/pkg/api"
	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
)

func newSubscribersCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscribers",
		Aliases: []string{"subscriber", "subs"},
		Short:   "Manage registered subscribers",
	}

	cmd.AddCommand(
		newSubscribersListCommand(opts),
		newSubscribersGetCommand(opts),
		newSubscribersCreateCommand(opts),
		newSubscribersDeleteCommand(opts),
		newSubscribersImportCommand(opts),
		newSubscribersExportCommand(opts),
	)
	return cmd
}

func newSubscribersListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := opts.client().ListSubscribers(opts.context(cmd))
			if err != nil {
				return err
			}
			return writeSubscribers(cmd.OutOrStdout(), opts.output, subs)
		},
	}
}

func newSubscribersGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sub, err := opts.client().GetSubscriber(opts.context(cmd), id)
			if err != nil {
				return err
			}
			return writeSubscribers(cmd.OutOrStdout(), opts.output, []*model.Subscriber{sub})
		},
	}
}

func newSubscribersCreateCommand(opts *options) *cobra.Command {
	var req api.CreateSubscriberRequest
	var terminal, subscription string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a subscriber",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Terminal = catalog.TerminalID(terminal)
			req.Subscription = catalog.SubscriptionID(subscription)
			sub, err := opts.client().CreateSubscriber(opts.context(cmd), req)
			if err != nil {
				return err
			}
			return writeSubscribers(cmd.OutOrStdout(), opts.output, []*model.Subscriber{sub})
		},
	}

	cmd.Flags().StringVar(&req.Forename, "forename", "", "forename")
	cmd.Flags().StringVar(&req.Surname, "surname", "", "surname")
	cmd.Flags().StringVar(&req.IMSI, "imsi", "", "15 digit IMSI")
	cmd.Flags().StringVar(&terminal, "terminal", "", "terminal name from the catalog")
	cmd.Flags().StringVar(&subscription, "subscription", "", "subscription id from the catalog")
	for _, name := range []string{"forename", "surname", "imsi", "terminal", "subscription"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newSubscribersDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a subscriber with all sessions and invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := opts.client().DeleteSubscriber(opts.context(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted subscriber %d\n", id)
			return nil
		},
	}
}

func newSubscribersImportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv|->",
		Short: "Import subscribers from a CSV file",
		Long: `Import subscribers from a CSV file with the header

  forename,surname,imsi,terminal_type,subscription_type

Rows whose IMSI is already registered are skipped. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				src = f
			}

			result, err := opts.client().ImportSubscribers(opts.context(cmd), src)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.output == outputJSON {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "Imported %d subscribers", len(result.Created))
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, ", skipped %d already registered: %s", len(result.Skipped), strings.Join(result.Skipped, ", "))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newSubscribersExportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.csv]",
		Short: "Export subscribers as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", args[0], err)
				}
				defer f.Close()
				out = f
			}
			return opts.client().ExportSubscribers(opts.context(cmd), out)
		},
	}
}
