package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/aadjones/kent-repertory-etl/internal/repertory"
)

// SectionStats is the conversion tally of one repertory section.
type SectionStats struct {
	Section   string    `json:"section"`
	Documents int       `json:"documents"`
	Pages     int       `json:"pages"`
	Rubrics   int       `json:"rubrics"`
	Remedies  int       `json:"remedies"`
	ParseMs   float64   `json:"parse_ms"`
	MaxMs     float64   `json:"max_ms"`
	LastAt    time.Time `json:"last_at"`
}

// AvgMs is the mean parse time per document.
func (s SectionStats) AvgMs() float64 {
	if s.Documents == 0 {
		return 0
	}
	return s.ParseMs / float64(s.Documents)
}

// StatsSnapshot is the conversion tally across sections, ordered by section
// name.
type StatsSnapshot struct {
	Documents int            `json:"documents"`
	Rubrics   int            `json:"rubrics"`
	Remedies  int            `json:"remedies"`
	Sections  []SectionStats `json:"sections"`
}

// ConversionStats counts parsed documents, rubrics and remedies per section
// since the process started.
type ConversionStats struct {
	mu       sync.Mutex
	sections map[string]*SectionStats
	now      func() time.Time
}

func NewConversionStats() *ConversionStats {
	return &ConversionStats{
		sections: make(map[string]*SectionStats),
		now:      time.Now,
	}
}

// Record adds one parsed document.
func (s *ConversionStats) Record(doc *repertory.Document, d time.Duration) {
	rubrics, remedies := doc.Counts()
	ms := float64(d) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.sections[doc.Section]
	if !ok {
		sec = &SectionStats{Section: doc.Section}
		s.sections[doc.Section] = sec
	}
	sec.Documents++
	sec.Pages += len(doc.Pages)
	sec.Rubrics += rubrics
	sec.Remedies += remedies
	sec.ParseMs += ms
	sec.MaxMs = max(sec.MaxMs, ms)
	sec.LastAt = s.now()
}

// Section returns the tally for one section.
func (s *ConversionStats) Section(name string) (SectionStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[name]
	if !ok {
		return SectionStats{}, false
	}
	return *sec, true
}

func (s *ConversionStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{Sections: make([]SectionStats, 0, len(s.sections))}
	for _, sec := range s.sections {
		snap.Documents += sec.Documents
		snap.Rubrics += sec.Rubrics
		snap.Remedies += sec.Remedies
		snap.Sections = append(snap.Sections, *sec)
	}
	sort.Slice(snap.Sections, func(i, j int) bool {
		return snap.Sections[i].Section < snap.Sections[j].Section
	})
	return snap
}
