package journal

import "time"

// Entry is one record as reconciled by a run.
type Entry struct {
	ID          int    `gorm:"primaryKey" json:"-"`
	RunID       string `gorm:"index;size:36"`
	Zone        string `gorm:"index;size:253"`
	Name        string `gorm:"index;size:253"`
	Type        string `gorm:"size:10"`
	Value       string `gorm:"size:4096"`
	TTL         uint32
	DirectoryID int
	Action      string `gorm:"size:16"` // created | existing
	CreatedAt   time.Time
}

const (
	ActionCreated  = "created"
	ActionExisting = "existing"
)

type Run struct {
	ID               string    `gorm:"primaryKey;size:36"`
	Zones            []RunZone `gorm:"foreignKey:RunRefer"`
	StartedAt        time.Time
	FinishedAt       time.Time
	ZonesSynced      int
	ZonesFailed      int
	RecordsProcessed int
	RecordsSkipped   int
	RecordsFailed    int
}

type RunZone struct {
	ID       int    `gorm:"primaryKey;autoIncrement" json:"-"`
	RunRefer string `gorm:"index;size:36" json:"-"`
	Zone     string `gorm:"size:253"`
	Server   string `gorm:"size:255"`
	Outcome  string `gorm:"size:16"`
	Stage    string `gorm:"size:16"`
	Error    string `gorm:"size:4096"`
	Records  int
	Skipped  int
	Failed   int
}
