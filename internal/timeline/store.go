package timeline

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fazalmittu/nfl-clip-coach/internal/models"
)

// GormStore persists one VideoIndex row per video. Each save is a single
// upsert, so a crash mid-save can never leave a half-written index.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Load(videoKey string) (*Snapshot, bool, error) {
	var record models.VideoIndex
	err := s.db.Where("video_key = ?", videoKey).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading index for %s: %w", videoKey, err)
	}

	snap, err := decodeSnapshot(&record)
	if err != nil {
		// Fail fast with a diagnostic instead of silently rebuilding — a
		// rebuild would mask the data loss behind hours of oracle calls.
		return nil, false, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, videoKey, err)
	}
	return snap, true, nil
}

func (s *GormStore) Save(videoKey string, snap *Snapshot) error {
	record, err := encodeSnapshot(videoKey, snap)
	if err != nil {
		return err
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"quarters", "mappings", "readings", "dead_zones", "updated_at"}),
	}).Create(record).Error
}

func encodeSnapshot(videoKey string, snap *Snapshot) (*models.VideoIndex, error) {
	// JSON objects can't have int keys, so quarters go through strings
	quarters := make(map[string]float64, len(snap.Quarters))
	for q, off := range snap.Quarters {
		quarters[strconv.Itoa(q)] = off
	}

	quartersJSON, err := json.Marshal(quarters)
	if err != nil {
		return nil, err
	}
	mappingsJSON, err := json.Marshal(snap.Mappings)
	if err != nil {
		return nil, err
	}
	readingsJSON, err := json.Marshal(snap.Readings)
	if err != nil {
		return nil, err
	}
	zonesJSON, err := json.Marshal(snap.DeadZones)
	if err != nil {
		return nil, err
	}

	return &models.VideoIndex{
		VideoKey:  videoKey,
		Quarters:  string(quartersJSON),
		Mappings:  string(mappingsJSON),
		Readings:  string(readingsJSON),
		DeadZones: string(zonesJSON),
	}, nil
}

func decodeSnapshot(record *models.VideoIndex) (*Snapshot, error) {
	snap := &Snapshot{
		Quarters: make(map[int]float64),
		Mappings: make(map[string]ResolvedMapping),
		Readings: make(map[string]models.GameClock),
	}

	if record.Quarters != "" {
		raw := make(map[string]float64)
		if err := json.Unmarshal([]byte(record.Quarters), &raw); err != nil {
			return nil, fmt.Errorf("quarters column: %v", err)
		}
		for k, off := range raw {
			q, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("quarters column: bad key %q", k)
			}
			snap.Quarters[q] = off
		}
	}

	if record.Mappings != "" {
		if err := json.Unmarshal([]byte(record.Mappings), &snap.Mappings); err != nil {
			return nil, fmt.Errorf("mappings column: %v", err)
		}
	}

	if record.Readings != "" {
		if err := json.Unmarshal([]byte(record.Readings), &snap.Readings); err != nil {
			return nil, fmt.Errorf("readings column: %v", err)
		}
	}

	if record.DeadZones != "" {
		if err := json.Unmarshal([]byte(record.DeadZones), &snap.DeadZones); err != nil {
			return nil, fmt.Errorf("dead_zones column: %v", err)
		}
	}

	return snap, nil
}
