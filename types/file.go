package types

import "time"

// File is the metadata of an object in the file bucket. The object itself is
// stored under ObjectKey.
type File struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	MimeType  string    `json:"mimeType" db:"mime_type"`
	SizeBytes int64     `json:"sizeBytes" db:"size_bytes"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	ObjectKey string    `json:"-" db:"object_key"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
