package entity

import "time"

// UserProfile mirrors the TCube user directory. OID is the legacy integer
// key shared with UserCredential.
type UserProfile struct {
	OID      int    `gorm:"column:oid;primaryKey"`
	UserName string `gorm:"column:user_name"`
	EmailId  string `gorm:"column:email_id"`
}

func (UserProfile) TableName() string {
	return "user_profile"
}

type UserCredential struct {
	OID          int    `gorm:"column:oid;primaryKey"`
	PasswordHash string `gorm:"column:password_hash"`
	LastLogin    *time.Time
	CreatedDate  time.Time
}

func (UserCredential) TableName() string {
	return "user_credentials"
}
