package pipeline

import "context"

const ContentTypeJSON = "application/json"

// BlobStore is the storage collaborator every stage reads from and writes to.
type BlobStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	// ListObjects returns one page of keys. An empty cursor starts from the
	// beginning; Truncated reports whether another page follows NextCursor.
	ListObjects(ctx context.Context, bucket, cursor string) (ListPage, error)
	// DeleteObjects removes keys in one batch and reports per-key failures.
	DeleteObjects(ctx context.Context, bucket string, keys []string) ([]DeleteError, error)
}

type ListPage struct {
	Keys       []string
	NextCursor string
	Truncated  bool
}

type DeleteError struct {
	Key     string
	Code    string
	Message string
}

// Publisher sends the location of an updated object to the Check stage.
type Publisher interface {
	SendMessage(ctx context.Context, queueID, groupID, body string) (string, error)
}
