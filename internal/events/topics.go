package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderConfirmed = "order.confirmed"
	TopicOrderPaid      = "order.paid"
	TopicOrderCanceled  = "order.canceled"
	TopicOrderRefunded  = "order.refunded"
	TopicOrderDelivered = "order.delivered"
	TopicPaymentFailed  = "payment.failed"
	TopicRewardGranted  = "milestone_reward_granted"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderConfirmed,
		TopicOrderPaid,
		TopicOrderCanceled,
		TopicOrderRefunded,
		TopicOrderDelivered,
		TopicPaymentFailed,
		TopicRewardGranted,
	}
}
