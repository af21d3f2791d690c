package mqtt

import (
	"encoding/json"
	"time"
)

// Presence values on the system status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	ReasonShutdown = "graceful_shutdown"
	ReasonLost     = "unexpected_disconnect"
)

// StatusMessage is the retained presence document on
// webcamctrl/system/status. The broker publishes the ReasonLost variant as
// the last will unless Connect is given another.
type StatusMessage struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func statusPayload(status, clientID, reason string) []byte {
	//nolint:errcheck // a struct of strings and a time always encodes
	data, _ := json.Marshal(StatusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
	return data
}
