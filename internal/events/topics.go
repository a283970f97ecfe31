package events

// Topic constants for events emitted while pricing shipments.
const (
	TopicShipmentPriced  = "shipment.priced"
	TopicShipmentIgnored = "shipment.ignored"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicShipmentPriced,
		TopicShipmentIgnored,
	}
}
