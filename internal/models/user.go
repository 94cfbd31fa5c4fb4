package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// UserSummary is the public part of a user.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type Profile struct {
	UserID    string    `db:"user_id" json:"user"`
	FirstName string    `db:"first_name" json:"firstName" validate:"required"`
	LastName  string    `db:"last_name" json:"lastName" validate:"required"`
	Email     string    `db:"email" json:"email" validate:"required,email"`
	Phone     string    `db:"phone" json:"phone" validate:"required"`
	Address   Address   `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// Contact statuses
const (
	ContactStatusNew     = "new"
	ContactStatusRead    = "read"
	ContactStatusReplied = "replied"
)

var ContactStatuses = []string{ContactStatusNew, ContactStatusRead, ContactStatusReplied}

type Contact struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required"`
	Email     string    `db:"email" json:"email" validate:"required,email"`
	Subject   string    `db:"subject" json:"subject" validate:"required"`
	Message   string    `db:"message" json:"message" validate:"required"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Subscription struct {
	Email      string    `db:"email" json:"email"`
	Subscribed bool      `db:"subscribed" json:"subscribed"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type PasswordReset struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
