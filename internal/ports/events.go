package ports

// EventBus fans application events out to any number of subscribers.
// Publishing never blocks; slow subscribers drop events.
type EventBus interface {
	Publish(topic string, payload []byte)
	Subscribe() (ch <-chan Event, cancel func())
}

type Event struct {
	Topic   string
	Payload []byte
}
