package journal

import "strings"

const maxRuns = 50

func (j *Journal) queryRuns(limit int) ([]Run, error) {
	if limit <= 0 || limit > maxRuns {
		limit = maxRuns
	}
	var runs []Run
	result := j.db.Preload("Zones").Order("started_at desc").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

func (j *Journal) queryRun(id string) (*Run, error) {
	var runs []Run
	result := j.db.Where("id = ?", id).Preload("Zones").Limit(1).Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (j *Journal) queryEntriesByRun(runID string) ([]Entry, error) {
	var entries []Entry
	result := j.db.Where("run_id = ?", runID).Order("id").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

// queryEntries looks up records by owner name, optionally within one zone.
// The zone may be given with or without its trailing dot.
func (j *Journal) queryEntries(name, zone string) ([]Entry, error) {
	var entries []Entry
	tx := j.db.Where("name = ?", name)
	if zone != "" {
		tx = tx.Where("zone = ?", strings.TrimSuffix(zone, ".")+".")
	}
	result := tx.Order("id").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}
