package broker

type EventType string

const (
	EventMaterialUploaded EventType = "material_uploaded"
	EventCommentPosted    EventType = "comment_posted"
)

// Event is one activity item pushed to live feed subscribers.
type Event struct {
	Type       EventType `json:"type"`
	MaterialID string    `json:"material_id"`
	Actor      string    `json:"actor"` // username
	Title      string    `json:"title"` // material display name or comment excerpt
	Timestamp  string    `json:"timestamp"`
}

// EventBroker distributes activity events. The redis implementation
// lets every server instance see uploads and comments handled by its
// peers, so feed clients get the full stream regardless of which node
// they connected to.
type EventBroker interface {
	Publish(event Event) error
	Subscribe() (<-chan Event, error)
	Close() error
}
