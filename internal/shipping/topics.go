package shipping

const (
	TopicShipmentCreated   = "shipment.created"
	TopicShipmentStarted   = "shipment.started"
	TopicProductScanned    = "shipment.scanned"
	TopicShipmentCompleted = "shipment.completed"
	TopicShipmentCancelled = "shipment.cancelled"
)

// Partition key = shipment id, so every event for one shipment keeps order.
func PartitionKey(shipmentID string) []byte { return []byte(shipmentID) }
