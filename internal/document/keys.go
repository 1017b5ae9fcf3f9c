package document

import (
	"fmt"
	"strings"
)

// Store key layout.
const (
	KeyBase      = "kurokku"
	ConfigKey    = KeyBase + ":config"
	AlertPrefix  = KeyBase + ":alert:"
	AlertPattern = AlertPrefix + "*"

	ChannelPrefix  = KeyBase + ":channel:"
	ChannelPattern = ChannelPrefix + "*"
	// ControlChannel is where the CLI publishes control words.
	ControlChannel = ChannelPrefix + "control"
)

// Control words carried on the channel pattern.
const (
	ControlStop  = "STOP"
	ControlAlert = "ALERT"
)

// KeyspaceConfigPattern matches keyspace notifications for the config key.
func KeyspaceConfigPattern(db int) string {
	return fmt.Sprintf("__keyspace@%d__:%s*", db, ConfigKey)
}

// KeyspaceAlertPattern matches keyspace notifications for any alert key.
func KeyspaceAlertPattern(db int) string {
	return fmt.Sprintf("__keyspace@%d__:%s*", db, strings.TrimSuffix(AlertPrefix, ":"))
}

// AlertKey returns the store key for the alert with the given id.
func AlertKey(id string) string {
	return AlertPrefix + id
}

// AlertID extracts the id from an alert key. Keys outside the alert prefix
// are returned unchanged.
func AlertID(key string) string {
	return strings.TrimPrefix(key, AlertPrefix)
}
