// Package connect resolves the people reachable from a field-work activity
// and turns them into launchable video-call connections.
package connect

import "strings"

const (
	metaEquipmentKey = "eqp"
	metaActivityKey  = "act"
)

// Metadata identifies the work context a call is about. It travels between
// requests as an opaque "eqp:<id>;act:<id>" string and is attached to the
// launch request so the call shows up against the right records.
type Metadata struct {
	EquipmentID string
	ActivityID  string
}

// String renders the wire form. Both segments are always present; an empty
// id renders as an empty value.
func (m Metadata) String() string {
	return metaEquipmentKey + ":" + m.EquipmentID + ";" + metaActivityKey + ":" + m.ActivityID
}

// ParseMetadata reads the wire form back. Unknown or malformed segments are
// ignored rather than rejected; an empty input yields the zero Metadata.
func ParseMetadata(s string) Metadata {
	var m Metadata
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch key {
		case metaEquipmentKey:
			m.EquipmentID = value
		case metaActivityKey:
			m.ActivityID = value
		}
	}
	return m
}

// items is the shape the launch API expects under metadataItems.
type metadataItems struct {
	ActivityCode  string `json:"ActivityCode"`
	EquipmentCode string `json:"EquipmentCode"`
}

func (m Metadata) items() metadataItems {
	return metadataItems{ActivityCode: m.ActivityID, EquipmentCode: m.EquipmentID}
}
