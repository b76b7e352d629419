// Package plan manages service packages: the bandwidth tiers subscribers
// are billed on.
package plan
