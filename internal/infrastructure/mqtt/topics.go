package mqtt

import "fmt"

// topicPrefix roots every topic the mirror publishes.
const topicPrefix = "netward"

// SystemStatusTopic is where the service publishes its own liveness,
// retained, with a Last Will flipping it to offline on crash.
func SystemStatusTopic() string {
	return topicPrefix + "/system/status"
}

// SubscriberStatusTopic is where one subscriber's status deltas land.
func SubscriberStatusTopic(username string) string {
	return fmt.Sprintf("%s/subscribers/%s/status", topicPrefix, username)
}
