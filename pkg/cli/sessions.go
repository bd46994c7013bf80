package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/matsecom/pkg/api"
	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
)

func newSimulateCommand(opts *options) *cobra.Command {
	var req api.SimulateRequest
	var service string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a session for a subscriber",
		Long: `Simulate a voice call or data session.

A refused session exits non-zero with the refusal reason, for example
INSUFFICIENT_BANDWIDTH or INSUFFICIENT_DATA_VOLUME.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Service = catalog.ServiceID(service)
			res, err := opts.client().Simulate(opts.context(cmd), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.output == outputJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "Outcome: %s\n", res.Outcome)
			if res.Technology != "" {
				fmt.Fprintf(out, "Technology: %s (%s), throughput %s\n", res.Technology, res.SignalQuality, res.Throughput.String())
			}
			if res.Session != nil {
				return writeSessions(out, opts.output, []*model.Session{res.Session})
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&req.SubscriberID, "subscriber", 0, "subscriber id")
	cmd.Flags().StringVar(&service, "service", "", "service id from the catalog")
	cmd.Flags().Int64Var(&req.Duration, "duration", 0, "session duration in seconds")
	for _, name := range []string{"subscriber", "service", "duration"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newSessionsCommand(opts *options) *cobra.Command {
	var subscriberID int64
	var paid, unpaid bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List simulated sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *bool
			switch {
			case paid && unpaid:
				return fmt.Errorf("--paid and --unpaid are mutually exclusive")
			case paid:
				filter = model.Bool(true)
			case unpaid:
				filter = model.Bool(false)
			}

			sessions, err := opts.client().ListSessions(opts.context(cmd), subscriberID, filter)
			if err != nil {
				return err
			}
			return writeSessions(cmd.OutOrStdout(), opts.output, sessions)
		},
	}

	cmd.Flags().Int64Var(&subscriberID, "subscriber", 0, "only sessions of this subscriber")
	cmd.Flags().BoolVar(&paid, "paid", false, "only sessions already billed")
	cmd.Flags().BoolVar(&unpaid, "unpaid", false, "only sessions not yet billed")
	return cmd
}
