package api

import (
	"context"
	"fmt"

	"clipspace/internal/extern"
)

func (s *Service) monitorControl() (MonitorControl, error) {
	if s.monitors == nil {
		return nil, fmt.Errorf("%w: monitor engine not running", extern.ErrConfiguration)
	}
	return s.monitors, nil
}

// CheckMonitorNow queues an immediate check of a web monitor.
func (s *Service) CheckMonitorNow(ctx context.Context, itemID string) error {
	monitors, err := s.monitorControl()
	if err != nil {
		return err
	}
	return monitors.CheckNow(ctx, itemID)
}

// SetMonitorStatus pauses or resumes a web monitor.
func (s *Service) SetMonitorStatus(ctx context.Context, itemID, status string) error {
	monitors, err := s.monitorControl()
	if err != nil {
		return err
	}
	return monitors.SetStatus(ctx, itemID, status)
}

// SetMonitorAIEnabled toggles AI change descriptions for a web monitor.
func (s *Service) SetMonitorAIEnabled(ctx context.Context, itemID string, enabled bool) error {
	monitors, err := s.monitorControl()
	if err != nil {
		return err
	}
	return monitors.SetAIEnabled(ctx, itemID, enabled)
}

// SetMonitorCheckInterval changes how often a web monitor is checked.
func (s *Service) SetMonitorCheckInterval(ctx context.Context, itemID string, minutes int) error {
	monitors, err := s.monitorControl()
	if err != nil {
		return err
	}
	return monitors.SetInterval(ctx, itemID, minutes)
}

// MarkMonitorsViewed clears the unviewed-changes badge on the monitor space.
func (s *Service) MarkMonitorsViewed(ctx context.Context) error {
	monitors, err := s.monitorControl()
	if err != nil {
		return err
	}
	return monitors.MarkViewed(ctx)
}
