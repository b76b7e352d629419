// Package device manages the router registry.
//
// A device is a MikroTik router the console talks to over the RouterOS
// API: its address, API credentials and a description. Subscribers
// reference devices by ID; the sync engine iterates the registry when
// refreshing subscriber status.
package device
