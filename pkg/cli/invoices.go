package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/matsecom/pkg/model"
)

func newInvoicesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoices",
		Aliases: []string{"invoice"},
		Short:   "Bill subscribers and inspect invoices",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <subscriber-id>",
			Short: "Bill every unpaid session of a subscriber",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				inv, err := opts.client().CreateInvoice(opts.context(cmd), id)
				if err != nil {
					return err
				}
				return writeInvoices(cmd.OutOrStdout(), opts.output, []*model.Invoice{inv})
			},
		},
		&cobra.Command{
			Use:   "get <invoice-id>",
			Short: "Show one invoice",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				inv, err := opts.client().GetInvoice(opts.context(cmd), id)
				if err != nil {
					return err
				}
				return writeInvoices(cmd.OutOrStdout(), opts.output, []*model.Invoice{inv})
			},
		},
		&cobra.Command{
			Use:   "list <subscriber-id>",
			Short: "List the invoices of a subscriber",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				invoices, err := opts.client().ListInvoices(opts.context(cmd), id)
				if err != nil {
					return err
				}
				return writeInvoices(cmd.OutOrStdout(), opts.output, invoices)
			},
		},
	)
	return cmd
}

func newCatalogCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Show the terminals, subscriptions and services of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.client().Catalog(opts.context(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.output == outputJSON {
				return writeJSON(out, cat)
			}

			if err := table(out, "SUBSCRIPTION\tNAME\tBASIC_FEE\tINCLUDED_MIN\tPER_EXTRA_MIN\tDATA_CAP", func(tw *tabwriter.Writer) {
				for _, s := range cat.Subscriptions {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\n",
						s.ID, s.Name, formatCents(s.BasicFee), s.MinutesIncluded, formatCents(s.PricePerExtraMinute), s.DataVolumeCap)
				}
			}); err != nil {
				return err
			}
			fmt.Fprintln(out)
			if err := table(out, "TERMINAL\tTECHNOLOGIES", func(tw *tabwriter.Writer) {
				for _, t := range cat.Terminals {
					fmt.Fprintf(tw, "%s\t%v\n", t.ID, t.Technologies)
				}
			}); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return table(out, "SERVICE\tNAME\tRAN\tREQUIRED_RATE", func(tw *tabwriter.Writer) {
				for _, s := range cat.Services {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.RequiredRANGeneration, s.RequiredDataRate.String())
				}
			})
		},
	}
}
