package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// User is a demo-relay directory entry. The relay only needs to know
	// a name exists; keys never pass through the directory.
	User struct {
		ID           primitive.ObjectID `bson:"_id,omitempty"`
		Name         string             `bson:"name"`
		RegisteredAt time.Time          `bson:"registered_at"`
	}
)
