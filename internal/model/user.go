// Package model defines domain entities for the application.
package model

import "time"

// User is an account created during registration.
// Username is unique across all users and always stored lowercased.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
