package models

// SequenceCounter holds the last number handed out for one document prefix
// within a scope and calendar month.
type SequenceCounter struct {
	ID        uint   `gorm:"primaryKey"`
	ScopeKey  string `gorm:"type:varchar(64);not null;uniqueIndex:ux_sequence_counters_scope,priority:1"`
	Prefix    string `gorm:"type:varchar(8);not null;uniqueIndex:ux_sequence_counters_scope,priority:2"`
	Period    string `gorm:"type:varchar(6);not null;uniqueIndex:ux_sequence_counters_scope,priority:3"`
	LastValue int64  `gorm:"not null;default:0"`
}
