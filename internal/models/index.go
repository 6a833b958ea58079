package models

import (
	"gorm.io/gorm"
)

// VideoIndex is the persisted timeline index for one video, keyed by the film's
// storage key. The four payload columns hold JSON so the whole index travels as
// a single row and every save is one atomic upsert.
type VideoIndex struct {
	gorm.Model

	VideoKey string `gorm:"uniqueIndex;not null"` // film key in the bucket (film/...)

	Quarters  string `gorm:"type:text"` // {"1": 90.0, "2": 1571.25, ...}
	Mappings  string `gorm:"type:text"` // {"Q2_8:34": {"offset": 2397.1, "exact": true}, ...}
	Readings  string `gorm:"type:text"` // {"1800.5": {"quarter": 2, "minutes": 13, "seconds": 45}, ...}
	DeadZones string `gorm:"type:text"` // [{"start": 2100, "end": 2250}, ...]
}
