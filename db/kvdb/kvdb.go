package kvdb

const (
	// RequestsBucket maps build request IDs to their JSON encoded RequestStatus.
	RequestsBucket = "requests"
	// SourcesBucket maps an indexed source path to its JSON encoded SourceMetadata.
	SourcesBucket = "sources"
	// PayloadsBucket maps an indexed source path to its canonical JSON payload.
	PayloadsBucket = "payloads"
)

var buckets = []string{RequestsBucket, SourcesBucket, PayloadsBucket}

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
	Close() error
}
