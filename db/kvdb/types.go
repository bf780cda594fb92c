package kvdb

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid key")
)

type InvalidKeyError struct {
	Key    string
	Reason string
}
type NotFoundError struct {
	Bucket string
	Key    string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %s: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key not found in %s: %s", e.Bucket, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type SourceKind string

const (
	SourceKindPayload  SourceKind = "payload"
	SourceKindMarkdown SourceKind = "markdown"
)

type SourceMetadata struct {
	LastIndexed time.Time  `json:"last_indexed"`
	Kind        SourceKind `json:"kind"`
	Records     int        `json:"records"`
}

type RequestStatus struct {
	Progress int    `json:"progress"`
	Source   string `json:"source"`
	Records  int    `json:"records"`
	Skipped  bool   `json:"skipped"`
	Error    string `json:"error,omitempty"`
}
