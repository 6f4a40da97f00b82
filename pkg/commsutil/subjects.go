package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectEvaluate = "bridgekit.evaluate"
	SubjectInbound  = "bridgekit.inbound"
	SubjectTraffic  = "bridgekit.traffic"
)

// Message headers used on the evaluate subject.
const (
	HeaderMessageID = "Bridgekit-Message-Id"
	HeaderError     = "Bridgekit-Error"
)

// BuildTrafficSubject builds a granular traffic subject, e.g. bridgekit.traffic.outbound.greet.
func BuildTrafficSubject(base, direction, topic string) string {
	return fmt.Sprintf("%s.%s.%s", base, direction, SafeToken(topic))
}

// SafeToken maps an arbitrary topic name to a single subject token.
func SafeToken(name string) string {
	if name == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, name)
}
