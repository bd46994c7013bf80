package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/matsecom/pkg/model"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// table writes rows as aligned columns.
func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func writeSubscribers(w io.Writer, format string, subs []*model.Subscriber) error {
	if format == outputJSON {
		return writeJSON(w, subs)
	}
	return table(w, "ID\tIMSI\tNAME\tTERMINAL\tSUBSCRIPTION\tCREATED", func(tw *tabwriter.Writer) {
		for _, s := range subs {
			fmt.Fprintf(tw, "%d\t%s\t%s %s\t%s\t%s\t%s\n",
				s.ID, s.IMSI, s.Forename, s.Surname, s.Terminal, s.Subscription, formatTime(s.CreatedAt))
		}
	})
}

func writeSessions(w io.Writer, format string, sessions []*model.Session) error {
	if format == outputJSON {
		return writeJSON(w, sessions)
	}
	return table(w, "ID\tSUBSCRIBER\tSERVICE\tDURATION\tDATA\tCALL_SECONDS\tPAID\tTIMESTAMP", func(tw *tabwriter.Writer) {
		for _, s := range sessions {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%d\t%t\t%s\n",
				s.ID, s.SubscriberID, s.Service, s.Duration, s.DataVolume, s.CallSeconds, s.Paid, formatTime(s.Timestamp))
		}
	})
}

func writeInvoices(w io.Writer, format string, invoices []*model.Invoice) error {
	if format == outputJSON {
		return writeJSON(w, invoices)
	}
	return table(w, "ID\tSUBSCRIBER\tSESSIONS\tDATA\tMINUTES\tCHARGES\tTIMESTAMP", func(tw *tabwriter.Writer) {
		for _, inv := range invoices {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
				inv.ID, inv.SubscriberID, inv.SessionCount, inv.DataVolume, inv.CallMinutes, formatCents(inv.Charges), formatTime(inv.Timestamp))
		}
	})
}

// formatCents renders an amount in cents as a decimal currency value.
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
