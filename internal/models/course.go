package models

import "time"

// Course has exactly one owning teacher at a time; reassignable by admin.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail is the read-time projection joining the owning teacher.
type CourseDetail struct {
	Course
	TeacherName       string  `db:"teacher_name" json:"teacher_name"`
	TeacherDepartment *string `db:"teacher_department" json:"teacher_department,omitempty"`
	TeacherTitle      *string `db:"teacher_title" json:"teacher_title,omitempty"`
}
