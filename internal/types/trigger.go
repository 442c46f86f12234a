package types

// Request is the inbound HTTP-style trigger for Create and Delete.
type Request struct {
	RequestID string
	Method    string
	Path      string
	Headers   map[string]string
}

// Response is what request-triggered stages hand back to the transport.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

type StorageRecord struct {
	Bucket string
	Key    string
}

// StorageEvent is a storage-object-created notification.
type StorageEvent struct {
	Records []StorageRecord
}

type QueueMessage struct {
	MessageID string
	Body      string
}

type QueueBatch struct {
	Messages []QueueMessage
}
