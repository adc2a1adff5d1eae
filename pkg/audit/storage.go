package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// Storage persists EpisodeReports to JSON files, retaining only the
// newest keepLastN.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *reporting.Logger
}

// NewStorage creates a Storage rooted at outputDir, creating it if
// necessary.
func NewStorage(outputDir string, keepLastN int, logger *reporting.Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit output directory: %w", err)
	}
	return &Storage{outputDir: outputDir, keepLastN: keepLastN, logger: logger}, nil
}

// SaveReport writes report as indented JSON and enforces retention.
func (s *Storage) SaveReport(report *EpisodeReport) (string, error) {
	filename := fmt.Sprintf("episode-%s.json", report.StartTime.UTC().Format("20060102-150405.000000000"))
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal episode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write episode report: %w", err)
	}

	s.logger.Info("episode report saved", "path", path, "status", report.Status)

	if s.keepLastN > 0 {
		if err := s.cleanupOldReports(); err != nil {
			s.logger.Warn("failed to clean up old episode reports", "error", err)
		}
	}

	return path, nil
}

// LoadReport reads an EpisodeReport back from disk.
func (s *Storage) LoadReport(path string) (*EpisodeReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read episode report: %w", err)
	}
	var report EpisodeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episode report: %w", err)
	}
	return &report, nil
}

// summary is the lightweight listing entry for a persisted episode.
type summary struct {
	StartTime time.Time
	Status    EpisodeStatus
	Filepath  string
}

// ListReports returns summaries of all persisted reports, newest first.
func (s *Storage) ListReports() ([]summary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit output directory: %w", err)
	}

	summaries := make([]summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		report, err := s.LoadReport(path)
		if err != nil {
			s.logger.Warn("failed to load episode report", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, summary{StartTime: report.StartTime, Status: report.Status, Filepath: path})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

func (s *Storage) cleanupOldReports() error {
	summaries, err := s.ListReports()
	if err != nil {
		return err
	}
	if len(summaries) <= s.keepLastN {
		return nil
	}
	for _, sm := range summaries[s.keepLastN:] {
		if err := os.Remove(sm.Filepath); err != nil {
			s.logger.Warn("failed to delete old episode report", "path", sm.Filepath, "error", err)
		} else {
			s.logger.Debug("deleted old episode report", "path", sm.Filepath)
		}
	}
	return nil
}
