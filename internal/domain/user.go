package domain

import (
	"slices"
	"time"
)

type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Role       UserRole  `json:"role"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AuthenticatedUser is the identity attached to a request.
type AuthenticatedUser struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Role       UserRole `json:"role"`
	IsVerified bool     `json:"isVerified"`
}

func (u AuthenticatedUser) HasRole(roles ...UserRole) bool {
	return slices.Contains(roles, u.Role)
}

func (u AuthenticatedUser) IsAdmin() bool { return u.Role == UserRoleAdmin }

type RegisterData struct {
	Email     string   `json:"email" validate:"required,email,max=254"`
	Password  string   `json:"password" validate:"required,min=8,max=72"`
	FirstName string   `json:"firstName" validate:"required,max=100"`
	LastName  string   `json:"lastName" validate:"max=100"`
	Role      UserRole `json:"role" validate:"omitempty,enum,ne=ADMIN"`
}

type LoginData struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type Address struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	Type       AddressType `json:"type"`
	FullName   string      `json:"fullName"`
	Line1      string      `json:"line1"`
	Line2      string      `json:"line2,omitempty"`
	City       string      `json:"city"`
	State      string      `json:"state,omitempty"`
	PostalCode string      `json:"postalCode"`
	Country    string      `json:"country"`
	Phone      string      `json:"phone,omitempty"`
	IsDefault  bool        `json:"isDefault"`
	CreatedAt  time.Time   `json:"createdAt"`
}

type AddressCreateData struct {
	Type       AddressType `json:"type" validate:"required,enum"`
	FullName   string      `json:"fullName" validate:"required,max=200"`
	Line1      string      `json:"line1" validate:"required,max=200"`
	Line2      string      `json:"line2" validate:"max=200"`
	City       string      `json:"city" validate:"required,max=100"`
	State      string      `json:"state" validate:"max=100"`
	PostalCode string      `json:"postalCode" validate:"required,max=20"`
	Country    string      `json:"country" validate:"required,iso3166_1_alpha2"`
	Phone      string      `json:"phone" validate:"omitempty,e164"`
	IsDefault  bool        `json:"isDefault"`
}

type PaymentMethod struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Type        PaymentMethodType `json:"type"`
	Provider    string            `json:"provider,omitempty"`
	Last4       string            `json:"last4,omitempty"`
	ExpiryMonth int               `json:"expiryMonth,omitempty"`
	ExpiryYear  int               `json:"expiryYear,omitempty"`
	IsDefault   bool              `json:"isDefault"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type PaymentMethodCreateData struct {
	Type        PaymentMethodType `json:"type" validate:"required,enum"`
	Provider    string            `json:"provider" validate:"max=50"`
	Last4       string            `json:"last4" validate:"omitempty,len=4,numeric"`
	ExpiryMonth int               `json:"expiryMonth" validate:"omitempty,min=1,max=12"`
	ExpiryYear  int               `json:"expiryYear" validate:"omitempty,min=2000,max=2100"`
	IsDefault   bool              `json:"isDefault"`
}
