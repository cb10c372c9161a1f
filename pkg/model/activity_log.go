package model

import (
	"time"

	"github.com/fystack/walletstream/pkg/common/enum"
)

// ActivityLog is the persisted, enriched result of one processed transfer
// event. Rows are created exactly once per processed event and never mutated.
type ActivityLog struct {
	BaseModel
	UserID       string         `gorm:"not null;type:uuid;index"          json:"user_id"`
	User         *MonitoredUser `gorm:"foreignKey:UserID"                 json:"user,omitempty"`
	TxHash       string         `gorm:"not null;type:varchar(128);index"  json:"tx_hash"`
	ActivityType string         `gorm:"not null;type:varchar(32)"         json:"activity_type"`
	Chain        string         `gorm:"not null;type:varchar(64)"         json:"chain"`
	Direction    enum.Direction `gorm:"not null;type:varchar(8)"          json:"direction"`
	Details      string         `gorm:"type:jsonb"                        json:"details"`
	Timestamp    time.Time      `gorm:"not null;index"                    json:"timestamp"`
}
