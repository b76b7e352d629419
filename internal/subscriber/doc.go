// Package subscriber manages PPPoE subscriber records.
//
// A subscriber mirrors a PPP secret on a MikroTik router plus the
// operational metadata the console tracks: customer ID, contact details,
// physical plant attachment and connection status. The sync engine keeps
// status current; the API layer handles CRUD and spreadsheet import.
package subscriber
