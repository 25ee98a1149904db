package recommend

import (
	"github.com/eshaffer321/transferscan/internal/domain/interval"
)

// Preferences are the user-tunable scan settings. They are written by the
// settings UI and only read here.
type Preferences struct {
	DefaultChunkDays   int   `json:"default_chunk_days"`
	LastUsedChunkSizes []int `json:"last_used_chunk_sizes"`
	AutoExpand         bool  `json:"auto_expand"`
}

// Config holds engine defaults and the bounds applied to preference-driven chunks.
type Config struct {
	ChunkDays    int
	OverlapDays  int
	MinChunkDays int
	MaxChunkDays int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ChunkDays:    DefaultChunkDays,
		OverlapDays:  DefaultOverlapDays,
		MinChunkDays: 7,
		MaxChunkDays: 365,
	}
}

// Engine applies a Config and user preferences to RecommendNextRange.
type Engine struct {
	config Config
}

// NewEngine creates a new engine with the given config
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// ChunkDaysFor picks the chunk size for a scan.
//
// DefaultChunkDays overrides the configured chunk. With AutoExpand set, the
// most recently used chunk size wins when it is larger. The result is bounded
// by MinChunkDays/MaxChunkDays and always exceeds the overlap.
func (e *Engine) ChunkDaysFor(prefs *Preferences) int {
	chunk := e.config.ChunkDays
	if chunk <= 0 {
		chunk = DefaultChunkDays
	}

	if prefs != nil {
		if prefs.DefaultChunkDays > 0 {
			chunk = prefs.DefaultChunkDays
		}
		if prefs.AutoExpand && len(prefs.LastUsedChunkSizes) > 0 {
			if last := prefs.LastUsedChunkSizes[len(prefs.LastUsedChunkSizes)-1]; last > chunk {
				chunk = last
			}
		}
	}

	if e.config.MinChunkDays > 0 && chunk < e.config.MinChunkDays {
		chunk = e.config.MinChunkDays
	}
	if e.config.MaxChunkDays > 0 && chunk > e.config.MaxChunkDays {
		chunk = e.config.MaxChunkDays
	}
	if chunk <= e.config.OverlapDays {
		chunk = e.config.OverlapDays + 1
	}
	return chunk
}

// Recommend returns the next range for the given state, or nil when done.
func (e *Engine) Recommend(account, checked *interval.DateRange, prefs *Preferences) (*Recommendation, error) {
	return Next(account, checked, e.ChunkDaysFor(prefs), e.config.OverlapDays)
}
