package zonesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/evalfun/zonesync/mlog"
	"github.com/evalfun/zonesync/pkg/directory"
	"github.com/evalfun/zonesync/pkg/rrnorm"
	"github.com/google/uuid"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// ErrBootstrap wraps failures to set up the nameserver or the view.
// Nothing is synced when Run returns it.
var ErrBootstrap = errors.New("bootstrap failed")

const (
	recordProcessed = "processed"
	recordSkipped   = "skipped"
	recordFailed    = "failed"
)

// Options is what a run syncs and where from.
type Options struct {
	// Servers are tried in order for every zone.
	Servers []string
	// ViewName may be empty, records then go to no view.
	ViewName   string
	DefaultTTL int
	SOAMName   string
	SOARName   string
	Zones      []ZoneSpec
}

type Opts struct {
	Logger    *zap.Logger
	Metrics   *Metrics
	Observers []Observer
}

// Syncer copies zones into the directory one at a time. It only ever
// creates objects. It never updates or deletes them.
type Syncer struct {
	opts      Options
	dir       Directory
	fetcher   Fetcher
	logger    *zap.Logger
	metrics   *Metrics
	observers []Observer
}

func New(o Options, dir Directory, fetcher Fetcher, opts Opts) *Syncer {
	s := &Syncer{
		opts:      o,
		dir:       dir,
		fetcher:   fetcher,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		observers: opts.Observers,
	}
	if s.logger == nil {
		s.logger = mlog.Nop()
	}
	return s
}

// Run syncs every configured zone. Zone and record failures are counted
// in the summary. The returned error is either ErrBootstrap or the
// context error if ctx ended between zones.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := s.logger.With(zap.String("run_id", sum.RunID))

	ns, err := s.dir.EnsureNameserver(ctx, s.opts.SOAMName)
	if err != nil {
		logDirectoryError(logger, "failed to get or create nameserver", err, zap.String("nameserver", s.opts.SOAMName))
		return sum, fmt.Errorf("%w: nameserver %s: %w", ErrBootstrap, s.opts.SOAMName, err)
	}

	var viewID *int
	if s.opts.ViewName != "" {
		v, err := s.dir.EnsureView(ctx, s.opts.ViewName)
		if err != nil {
			logDirectoryError(logger, "failed to get or create view", err, zap.String("view", s.opts.ViewName))
			return sum, fmt.Errorf("%w: view %s: %w", ErrBootstrap, s.opts.ViewName, err)
		}
		viewID = &v.ID
	}

	var runErr error
	for _, z := range s.opts.Zones {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		r := s.syncZone(ctx, logger, sum.RunID, z, ns.ID, viewID)
		s.metrics.zone(r.Outcome)
		sum.add(r)
	}
	sum.FinishedAt = time.Now()
	s.metrics.finished(sum)

	logger.Info("sync summary",
		zap.Int("zones_synced", sum.ZonesSynced),
		zap.Int("zones_failed", sum.ZonesFailed),
		zap.Int("records_processed", sum.RecordsProcessed),
		zap.Int("records_skipped", sum.RecordsSkipped),
		zap.Int("records_failed", sum.RecordsFailed),
		zap.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	// Observers still record a run that was canceled part way.
	octx := context.WithoutCancel(ctx)
	for _, o := range s.observers {
		if err := o.Finished(octx, sum); err != nil {
			logger.Warn("observer failed", zap.Error(err))
		}
	}
	return sum, runErr
}

func (s *Syncer) syncZone(ctx context.Context, logger *zap.Logger, runID string, z ZoneSpec, nsID int, viewID *int) ZoneResult {
	name := dns.Fqdn(z.Name)
	r := ZoneResult{Zone: name, Reverse: z.IsReverse}
	logger = logger.With(zap.String("zone", name))
	fail := func(stage Stage, err error) ZoneResult {
		r.Outcome, r.Stage, r.Err = OutcomeFailed, stage, err
		return r
	}

	zone, err := s.dir.EnsureZone(ctx, directory.ZoneParams{
		Name:       name,
		DefaultTTL: s.opts.DefaultTTL,
		SOAMName:   nsID,
		SOARName:   s.opts.SOARName,
		ViewID:     viewID,
	})
	if err != nil {
		logDirectoryError(logger, "failed to get or create zone", err)
		return fail(StageZone, err)
	}

	tr, err := s.fetcher.Fetch(ctx, name, s.opts.Servers)
	if err != nil {
		logger.Error("zone transfer failed on all servers", zap.Error(err))
		return fail(StageTransfer, err)
	}
	defer tr.Close()
	r.Server = tr.Server()
	logger.Info("syncing zone", zap.String("server", r.Server), zap.Int("zone_id", zone.ID))

	for {
		rrs, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error("error processing records", zap.Error(err),
				zap.Int("records_processed", r.Records))
			return fail(StageRecords, err)
		}
		for _, rr := range rrs {
			if !rrnorm.Supported(rr.Header().Rrtype) {
				continue
			}
			s.syncRecord(ctx, logger, runID, name, zone.ID, viewID, rr, &r)
		}
	}

	r.Outcome = OutcomeSynced
	logger.Info("zone synced",
		zap.Int("records_processed", r.Records),
		zap.Int("records_skipped", r.Skipped),
		zap.Int("records_failed", r.Failed))
	return r
}

func (s *Syncer) syncRecord(ctx context.Context, logger *zap.Logger, runID, zoneName string, zoneID int, viewID *int, rr dns.RR, r *ZoneResult) {
	c, err := rrnorm.Normalize(rr, zoneName)
	if err != nil {
		var se *rrnorm.SkipError
		if errors.As(err, &se) {
			logger.Warn("skipping record",
				zap.String("name", se.Name), zap.String("type", se.Type),
				zap.String("reason", string(se.Reason)), zap.String("detail", se.Detail))
		} else {
			logger.Warn("skipping record", zap.Error(err))
		}
		r.Skipped++
		s.metrics.record(recordSkipped)
		return
	}

	rec, created, err := s.dir.EnsureRecord(ctx, directory.RecordParams{
		ZoneID:     zoneID,
		ViewID:     viewID,
		Record:     c,
		DefaultTTL: s.opts.DefaultTTL,
	})
	if err != nil {
		logDirectoryError(logger, "failed to create record", err,
			zap.String("name", c.Name), zap.String("type", c.Type), zap.String("value", c.Value))
		r.Failed++
		s.metrics.record(recordFailed)
		return
	}
	r.Records++
	s.metrics.record(recordProcessed)
	logger.Debug("record reconciled",
		zap.String("name", c.Name), zap.String("type", c.Type),
		zap.Int("record_id", rec.ID), zap.Bool("created", created))

	ev := &Reconciled{RunID: runID, Zone: zoneName, Record: c, DirectoryID: rec.ID, Created: created}
	for _, o := range s.observers {
		if err := o.Reconciled(context.WithoutCancel(ctx), ev); err != nil {
			logger.Warn("observer failed", zap.Error(err))
		}
	}
}

func logDirectoryError(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	var re *directory.RejectedError
	if errors.As(err, &re) {
		fields = append(fields, zap.Int("status", re.StatusCode), zap.String("body", re.Body))
	}
	logger.Error(msg, fields...)
}
