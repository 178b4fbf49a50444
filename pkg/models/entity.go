package models

import (
	"time"
)

// Entity is a reporting company. Entities are identified by an identifier
// scheme plus value (e.g. the SEC CIK scheme) and are immutable once created;
// every filing for the same registrant resolves to the same Entity row.
type Entity struct {
	ID         string     `json:"id" db:"id"`
	Scheme     string     `json:"scheme" db:"scheme" validate:"required"`
	Identifier string     `json:"identifier" db:"identifier" validate:"required"`
	Name       string     `json:"name" db:"name"`
	ParentID   *string    `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// RenameEntityRequest is the request body for renaming an entity.
type RenameEntityRequest struct {
	Name string `json:"name" validate:"required"`
}

// SetEntityParentRequest is the request body for re-parenting an entity in
// the entity tree. A nil parent detaches the entity to the root level.
type SetEntityParentRequest struct {
	ParentID *string `json:"parent_id"`
}
