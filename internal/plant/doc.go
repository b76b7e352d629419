// Package plant manages outside-plant records: POPs (points of presence)
// and the ODPs (optical distribution points) hanging off them. Subscribers
// reference an ODP so drops can be traced back through the network.
package plant
