package storage

import "apibaraDeserializer/internal/model"

// Storage defines a sink for raw events.
type Storage interface {
	PutEvents(events []model.Event) error
}

// Rewinder is a Storage whose writes can be rolled back to an earlier offset.
type Rewinder interface {
	Storage
	Offset() (int64, error)
	Rewind(offset int64) error
}
