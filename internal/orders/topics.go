package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderShipped   = "order.shipped"
	TopicOrderDelivered = "order.delivered"
	TopicOrderCancelled = "order.cancelled"
)

// Partition key = order id, so every event of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
