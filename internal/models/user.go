package models

import (
	"strconv"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// Roles
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

type User struct {
	gorm.Model  `json:"-"`
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name"`
	Email       string  `json:"email" gorm:"uniqueIndex"`
	Department  string  `json:"department"`
	Role        string  `json:"role" gorm:"size:20;default:'employee'"`
	Password    string  `json:"-"`
	FirebaseUID *string `json:"firebase_uid,omitempty" gorm:"uniqueIndex"`
}

// Key returns the string form of the user id used as the author reference in
// the post store.
func (u *User) Key() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}

// AsAuthor returns the denormalized author reference for the user.
func (u *User) AsAuthor() Author {
	return Author{
		UserID:     u.Key(),
		Name:       u.Name,
		Department: u.Department,
	}
}

type CreateLocalUserRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"required,max=100"`
	Password   string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	Name       string `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Department string `json:"department,omitempty" validate:"omitempty,max=100"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserKey returns the author reference of the token holder.
func (c *JwtCustomClaims) UserKey() string {
	return strconv.FormatUint(uint64(c.UserID), 10)
}

// IsAdmin reports whether the token holder has the admin role.
func (c *JwtCustomClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
