package models

import "time"

// Role separates citizens from municipal administrators.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

type User struct {
	ID           int         `gorm:"primaryKey" json:"id"`
	Username     string      `gorm:"unique;not null" json:"username"`
	Email        string      `gorm:"unique;not null" json:"email"`
	Password     string      `gorm:"not null" json:"-"`
	Phone        string      `json:"-"` // E.164, used for status SMS; only GET /me returns it
	Municipality string      `gorm:"index;not null" json:"municipality"`
	Role         Role        `gorm:"type:varchar(16);not null;default:citizen" json:"role"`
	DepartmentID *int        `json:"departmentId,omitempty"` // admins only
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type RegisterRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=50"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Municipality string `json:"municipality" binding:"required"`
	Phone        string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}
