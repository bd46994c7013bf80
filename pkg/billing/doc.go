// Package billing aggregates session usage and turns it into invoices.
//
// # Charges
//
// Call time is billed per started minute: the whole minutes of the summed call
// seconds plus one. Charges are the subscription's basic fee plus the price per
// extra minute for every billed minute above the included minutes:
//
//	billed  = call_seconds/60 + 1
//	charges = basic_fee + max(0, billed - minutes_included) * price_per_extra_minute
//
// A run that finds no unpaid sessions still produces an invoice. It carries the
// basic fee and nothing else.
//
// # Invoices
//
// Generator.Invoice claims every unpaid session of one subscriber, marks them paid
// and stores the invoice in a single storage unit of work. If any step fails the
// sessions stay unpaid and no invoice is written. Committed invoices can be copied
// to an archive such as the S3 object store; archive errors are logged and counted
// but never undo the invoice.
//
// # Billing cycles
//
// Cycle.Run invoices every subscriber with bounded concurrency:
//
//	cycle := billing.NewCycle(gen, store, locker, 4, logger, metrics)
//	result, err := cycle.Run(ctx)
//
// The leader lock keeps two processes from running a cycle at the same time. A
// process that cannot take it returns a skipped result. Failures of individual
// subscribers are reported in CycleResult.Failures and joined into the error.
package billing
