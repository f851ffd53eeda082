package model

type UserRole string

const (
	Admin     UserRole = "admin"
	Recruiter UserRole = "recruiter"
)

// swagger:model User
type User struct {
	BaseModel
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;unique;not null" json:"email"`
	Password string   `gorm:"size:100;not null" json:"-"`
	Role     UserRole `gorm:"size:20;not null;default:'recruiter'" json:"role"`
}

func (User) TableName() string {
	return "users"
}
