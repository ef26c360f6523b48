package zonesync

import (
	"context"
	"time"

	"github.com/evalfun/zonesync/pkg/directory"
	"github.com/evalfun/zonesync/pkg/rrnorm"
	"github.com/evalfun/zonesync/pkg/zonexfer"
)

// ZoneSpec is a zone to sync.
type ZoneSpec struct {
	Name      string `yaml:"name" mapstructure:"name"`
	IsReverse bool   `yaml:"reverse" mapstructure:"reverse"`
}

// Directory is the part of the directory API the syncer needs.
type Directory interface {
	EnsureNameserver(ctx context.Context, name string) (*directory.Nameserver, error)
	EnsureView(ctx context.Context, name string) (*directory.View, error)
	EnsureZone(ctx context.Context, p directory.ZoneParams) (*directory.Zone, error)
	EnsureRecord(ctx context.Context, p directory.RecordParams) (*directory.Record, bool, error)
}

// Fetcher starts zone transfers.
type Fetcher interface {
	Fetch(ctx context.Context, zone string, servers []string) (*zonexfer.Transfer, error)
}

// Reconciled describes one record the directory now holds.
type Reconciled struct {
	RunID       string
	Zone        string
	Record      *rrnorm.Canonical
	DirectoryID int
	Created     bool
}

// Observer is told about every reconciled record and about the end of
// a run. Its errors are logged and never fail the sync.
type Observer interface {
	Reconciled(ctx context.Context, r *Reconciled) error
	Finished(ctx context.Context, s *Summary) error
}

type Outcome string

const (
	OutcomeSynced Outcome = "synced"
	OutcomeFailed Outcome = "failed"
)

// Stage names the step a zone failed at.
type Stage string

const (
	StageZone     Stage = "zone"
	StageTransfer Stage = "transfer"
	StageRecords  Stage = "records"
)

type ZoneResult struct {
	Zone    string
	Reverse bool
	// Server is the AXFR server that answered.
	Server  string
	Outcome Outcome
	Stage   Stage
	Err     error

	Records int
	Skipped int
	Failed  int
}

type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	ZonesSynced      int
	ZonesFailed      int
	RecordsProcessed int
	RecordsSkipped   int
	RecordsFailed    int

	Zones []ZoneResult
}

func (s *Summary) add(r ZoneResult) {
	s.Zones = append(s.Zones, r)
	switch r.Outcome {
	case OutcomeSynced:
		s.ZonesSynced++
	default:
		s.ZonesFailed++
	}
	s.RecordsProcessed += r.Records
	s.RecordsSkipped += r.Skipped
	s.RecordsFailed += r.Failed
}
