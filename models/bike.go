package models

import (
	"fmt"
	"time"
)

// Bike is the single resource managed by the app. UserID points at the owning
// user but is not checked against the users table.
type Bike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Brand     string    `json:"brand" gorm:"size:255"`
	Model     string    `json:"model" gorm:"size:255"`
	ModelYear int       `json:"model_year"`
	UserID    uint      `json:"user_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Path is the canonical HTML location of the bike.
func (b *Bike) Path() string {
	return fmt.Sprintf("/bikes/%d", b.ID)
}
