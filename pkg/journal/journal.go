package journal

import (
	"context"
	"errors"

	"github.com/evalfun/zonesync/mlog"
	"github.com/evalfun/zonesync/pkg/zonesync"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Args struct {
	// DatabaseType 暂时支持"mysql"和"sqlite"
	DatabaseType    string `yaml:"database_type" mapstructure:"database_type"`
	DatabaseAddress string `yaml:"database_address" mapstructure:"database_address"`
}

// Enabled reports whether a journal database is configured.
func (a *Args) Enabled() bool {
	return a != nil && a.DatabaseType != ""
}

type Opts struct {
	Logger *zap.Logger
}

var _ zonesync.Observer = (*Journal)(nil)

// Journal keeps a history of runs and of every record they reconciled.
type Journal struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewJournal(args *Args, opts Opts) (*Journal, error) {
	j := &Journal{
		logger: opts.Logger,
	}
	if j.logger == nil {
		j.logger = mlog.Nop()
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var err error
	switch args.DatabaseType {
	case "sqlite":
		j.db, err = gorm.Open(sqlite.Open(args.DatabaseAddress), cfg)
	case "mysql":
		j.db, err = gorm.Open(mysql.Open(args.DatabaseAddress), cfg)
	default:
		return nil, errors.New("unsupported database type")
	}
	if err != nil {
		return nil, err
	}
	err = j.db.AutoMigrate(&Entry{}, &Run{}, &RunZone{})
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (j *Journal) Reconciled(ctx context.Context, r *zonesync.Reconciled) error {
	e := &Entry{
		RunID:       r.RunID,
		Zone:        r.Zone,
		Name:        r.Record.Name,
		Type:        r.Record.Type,
		Value:       r.Record.Value,
		TTL:         r.Record.TTL,
		DirectoryID: r.DirectoryID,
		Action:      ActionExisting,
	}
	if r.Created {
		e.Action = ActionCreated
	}
	return j.db.WithContext(ctx).Create(e).Error
}

func (j *Journal) Finished(ctx context.Context, s *zonesync.Summary) error {
	run := &Run{
		ID:               s.RunID,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		ZonesSynced:      s.ZonesSynced,
		ZonesFailed:      s.ZonesFailed,
		RecordsProcessed: s.RecordsProcessed,
		RecordsSkipped:   s.RecordsSkipped,
		RecordsFailed:    s.RecordsFailed,
	}
	for _, z := range s.Zones {
		rz := RunZone{
			Zone:    z.Zone,
			Server:  z.Server,
			Outcome: string(z.Outcome),
			Stage:   string(z.Stage),
			Records: z.Records,
			Skipped: z.Skipped,
			Failed:  z.Failed,
		}
		if z.Err != nil {
			rz.Error = z.Err.Error()
		}
		run.Zones = append(run.Zones, rz)
	}
	return j.db.WithContext(ctx).Save(run).Error
}
