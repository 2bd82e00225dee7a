package users

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("user with this email already exists")
)

// User account with optional profile fields
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	DateOfBirth  string    `json:"date_of_birth,omitempty"`
	Address      string    `json:"address,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	ZipCode      string    `json:"zip_code,omitempty"`
	Country      string    `json:"country,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileUpdate carries a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"date_of_birth"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	ZipCode     *string `json:"zip_code"`
	Country     *string `json:"country"`
}

// Apply copies the non-nil fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Name, p.Name)
	set(&u.Phone, p.Phone)
	set(&u.DateOfBirth, p.DateOfBirth)
	set(&u.Address, p.Address)
	set(&u.City, p.City)
	set(&u.State, p.State)
	set(&u.ZipCode, p.ZipCode)
	set(&u.Country, p.Country)
}
