// Package cli provides the matsecomctl command-line interface.
//
// Every command is a thin client of the matsecom HTTP API, so the CLI needs
// nothing but a reachable server:
//
//	matsecomctl --server http://localhost:8080 subscribers list
//
// # Commands
//
// subscribers: list, get, create, delete, import and export subscribers
//
//	matsecomctl subscribers create \
//		--forename Erika --surname Mustermann \
//		--imsi 262011234567890 \
//		--terminal "Samsung S42plus" --subscription GM
//	matsecomctl subscribers import subscribers.csv
//	matsecomctl subscribers export > subscribers.csv
//
// simulate: run one voice or data session
//
//	matsecomctl simulate --subscriber 1 --service AV --duration 30
//
// sessions: list sessions, optionally only paid or unpaid ones
//
//	matsecomctl sessions --subscriber 1 --unpaid
//
// invoices: bill unpaid sessions and read invoices back
//
//	matsecomctl invoices create 1
//	matsecomctl invoices list 1 -o json
//
// catalog: print the reference data the server runs with
//
// The --output flag switches between aligned tables and indented JSON.
package cli
