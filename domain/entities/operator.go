package entities

import (
	"errors"
	"time"
)

// Operator is a dispatcher account allowed to watch calls and speak into them
type Operator struct {
	ID        string    `json:"id" bson:"_id"`
	Username  string    `json:"username" bson:"username"`
	Secret    string    `json:"-" bson:"secret"`
	Name      string    `json:"name" bson:"name"`
	Language  string    `json:"language" bson:"language"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (o *Operator) Validate() error {
	if o.Username == "" {
		return errors.New("username is required")
	}
	if o.Secret == "" {
		return errors.New("secret is required")
	}
	return nil
}
