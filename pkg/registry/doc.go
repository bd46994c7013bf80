// Package registry manages subscribers: validation against the IMSI numbering rule
// and the catalog, registration, lookup with an expiring LRU cache, deletion and
// CSV import and export.
//
// An IMSI has exactly 15 digits, starts with the German country code 262 and
// carries a network code between 01 and 09:
//
//	262 01 1234567890
//	 |   |      |
//	 |   |      +- subscriber number
//	 |   +-------- network code
//	 +------------ country code
//
// CSV files use the header
//
//	forename,surname,imsi,terminal_type,subscription_type
//
// where terminal_type and subscription_type are catalog keys.
package registry
