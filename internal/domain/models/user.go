// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a lecturer account that can sign in to drive the device
// workflows. PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Active       bool               `bson:"active" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}
