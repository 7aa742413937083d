package model

// Room is a bookable room. Only rooms with an ExternalID are known to the upstream calendar.
type Room struct {
	Key        string `gorm:"primaryKey;size:64" json:"key"`
	Name       string `gorm:"size:256;not null;default:''" json:"name"`
	ExternalID *int32 `gorm:"index" json:"external_id"`
}

// TableName pins the rooms table name.
func (Room) TableName() string {
	return "rooms"
}
