package dto

import "github.com/noah-isme/lms-portal-api/internal/models"

// CreateUserRequest lets a super admin provision an account directly.
type CreateUserRequest struct {
	LoginID  string          `json:"login_id" validate:"required,min=3"`
	Password string          `json:"password" validate:"required,min=6"`
	Name     string          `json:"name" validate:"required"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Role     models.UserRole `json:"role" validate:"required,oneof=super_admin instructor student"`
}

// UpdateUserRequest updates profile fields.
type UpdateUserRequest struct {
	Name        string `json:"name" validate:"required"`
	NameEn      string `json:"name_en"`
	Email       string `json:"email" validate:"omitempty,email"`
	Affiliation string `json:"affiliation"`
	Phone       string `json:"phone"`
}
