package models

import "time"

// StudentProfile is the 1:1 extension of a student account. It shares the
// account lifecycle: created together, removed by the users cascade.
type StudentProfile struct {
	UserID string  `db:"user_id" json:"user_id"`
	Age    *int    `db:"age" json:"age,omitempty"`
	Major  *string `db:"major" json:"major,omitempty"`
}

// StudentDetail is the joined projection of an account and its profile.
type StudentDetail struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	FullName  string    `db:"full_name" json:"full_name"`
	Age       *int      `db:"age" json:"age,omitempty"`
	Major     *string   `db:"major" json:"major,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
