// File: internal/domain/user.go
package domain

import "time"

// User is immutable once created.
type User struct {
	ID      ID        `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

// UserRow is the persisted shape of a User.
type UserRow struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Name     string `gorm:"column:name;not null" json:"name"`
	Creation int64  `gorm:"column:creation;not null;index" json:"creation"`
}

func (UserRow) TableName() string { return "users" }

func (u User) Row() UserRow {
	return UserRow{ID: u.ID.Local, Name: u.Name, Creation: Millis(u.Created)}
}

// Millis converts a timestamp to the epoch-millisecond form used by storage.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis is the inverse of Millis. Times are kept in UTC.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NormalizeTime drops precision storage cannot keep, so a live entity and its
// replayed copy compare equal.
func NormalizeTime(t time.Time) time.Time {
	return FromMillis(Millis(t))
}
