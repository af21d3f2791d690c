package mqtt

import "fmt"

// Topic prefixes for the webCamCtrl MQTT hierarchy. Camera bridge topics
// (command, ack, response, health) live under TopicPrefix and are built by
// the rs232 package.
const (
	// TopicPrefix is the root of every webCamCtrl topic.
	TopicPrefix = "webcamctrl"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "webcamctrl/system"
)

// Topics provides builders for system-level MQTT topics.
type Topics struct{}

// SystemStatus returns the system status topic.
//
// Example: webcamctrl/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// ScanState returns the retained preset scan status topic.
//
// Example: webcamctrl/system/scan
func (Topics) ScanState() string {
	return fmt.Sprintf("%s/scan", TopicPrefixSystem)
}

// AllTopics returns a pattern matching all webCamCtrl topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: webcamctrl/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
