package relay

import (
	"encoding/json"
	"fmt"
)

// Transport is the relay collaborator interface the marketplace client
// depends on (spec.md §4.3: "open(url), send(url, bytes), read(url) ->
// Option<bytes>, close(url)"). Concrete implementations wrap a single
// WebSocket connection per URL; ConnectionPool is the bounded,
// health-tracked, circuit-broken manager in front of it.
type Transport interface {
	Open(url string) error
	Send(url string, payload []byte) error
	Read(url string) ([]byte, bool)
	Close(url string) error
}

// EventMessage is the NIP-01 outbound ["EVENT", <event>] envelope used to
// publish a job request or a bid response onto a relay.
type EventMessage struct {
	Event json.RawMessage
}

// MarshalJSON encodes m as the two-element NIP-01 array.
func (m EventMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{"EVENT", json.RawMessage(m.Event)})
}

// ReqMessage is the NIP-01 outbound ["REQ", sub_id, filter, ...] envelope
// used to subscribe for inbound bids/results.
type ReqMessage struct {
	SubscriptionID string
	Filters        []json.RawMessage
}

// MarshalJSON encodes m as the variable-length NIP-01 REQ array.
func (m ReqMessage) MarshalJSON() ([]byte, error) {
	arr := make([]any, 0, 2+len(m.Filters))
	arr = append(arr, "REQ", m.SubscriptionID)
	for _, f := range m.Filters {
		arr = append(arr, f)
	}
	return json.Marshal(arr)
}

// InboundKind tags the variant of a decoded relay->client message.
type InboundKind string

const (
	InboundEvent  InboundKind = "EVENT"
	InboundEOSE   InboundKind = "EOSE"
	InboundOK     InboundKind = "OK"
	InboundNotice InboundKind = "NOTICE"
	InboundClosed InboundKind = "CLOSED"
)

// Inbound is a decoded relay->client message, routed by the marketplace
// client's pending-job table on SubscriptionID/EventID.
type Inbound struct {
	Kind           InboundKind
	SubscriptionID string
	EventID        string
	Event          json.RawMessage
	Accepted       bool
	Message        string
}

// ParseInbound decodes a raw relay message array into an Inbound value.
func ParseInbound(raw []byte) (Inbound, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return Inbound{}, fmt.Errorf("relay: malformed message: %w", err)
	}
	if len(arr) == 0 {
		return Inbound{}, fmt.Errorf("relay: empty message array")
	}

	var kind string
	if err := json.Unmarshal(arr[0], &kind); err != nil {
		return Inbound{}, fmt.Errorf("relay: malformed message kind: %w", err)
	}

	switch InboundKind(kind) {
	case InboundEvent:
		if len(arr) < 3 {
			return Inbound{}, fmt.Errorf("relay: EVENT message missing fields")
		}
		var subID string
		_ = json.Unmarshal(arr[1], &subID)
		return Inbound{Kind: InboundEvent, SubscriptionID: subID, Event: arr[2]}, nil
	case InboundEOSE:
		var subID string
		if len(arr) > 1 {
			_ = json.Unmarshal(arr[1], &subID)
		}
		return Inbound{Kind: InboundEOSE, SubscriptionID: subID}, nil
	case InboundOK:
		var eventID string
		var accepted bool
		var message string
		if len(arr) > 1 {
			_ = json.Unmarshal(arr[1], &eventID)
		}
		if len(arr) > 2 {
			_ = json.Unmarshal(arr[2], &accepted)
		}
		if len(arr) > 3 {
			_ = json.Unmarshal(arr[3], &message)
		}
		return Inbound{Kind: InboundOK, EventID: eventID, Accepted: accepted, Message: message}, nil
	case InboundNotice:
		var message string
		if len(arr) > 1 {
			_ = json.Unmarshal(arr[1], &message)
		}
		return Inbound{Kind: InboundNotice, Message: message}, nil
	case InboundClosed:
		var subID, message string
		if len(arr) > 1 {
			_ = json.Unmarshal(arr[1], &subID)
		}
		if len(arr) > 2 {
			_ = json.Unmarshal(arr[2], &message)
		}
		return Inbound{Kind: InboundClosed, SubscriptionID: subID, Message: message}, nil
	default:
		return Inbound{}, fmt.Errorf("relay: unknown message kind %q", kind)
	}
}
