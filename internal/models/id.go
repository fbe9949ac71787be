package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh document id (hex encoded ObjectID).
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the document id format.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
