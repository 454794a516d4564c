package models

import "time"

// TeacherProfile is the 1:1 extension of a teacher account.
type TeacherProfile struct {
	UserID     string  `db:"user_id" json:"user_id"`
	Department *string `db:"department" json:"department,omitempty"`
	Title      *string `db:"title" json:"title,omitempty"`
	Email      *string `db:"email" json:"email,omitempty"`
}

// TeacherDetail is the joined projection of an account and its profile.
type TeacherDetail struct {
	ID         string    `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	FullName   string    `db:"full_name" json:"full_name"`
	Department *string   `db:"department" json:"department,omitempty"`
	Title      *string   `db:"title" json:"title,omitempty"`
	Email      *string   `db:"email" json:"email,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
