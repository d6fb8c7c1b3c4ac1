package cart

const (
	TopicCartProcessed     = "cart.processed"
	TopicCartProcessFailed = "cart.process.failed"
)

// Partition key = cart_id so all events for one cart keep their order.
func PartitionKey(cartID string) []byte { return []byte(cartID) }
