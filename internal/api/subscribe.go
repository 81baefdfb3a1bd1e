package api

import (
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
)

// subscribe forwards filtered bus events to cb from a dedicated goroutine.
// The returned disposer stops delivery and releases the subscription.
func (s *Service) subscribe(filter func(bus.Event) bool, cb func(bus.Event)) func() {
	events, dispose := s.hub.Subscribe(filter)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				cb(evt)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		dispose()
	}
}

// OnHistoryUpdate invokes cb whenever items change anywhere.
func (s *Service) OnHistoryUpdate(cb func(bus.Event)) func() {
	return s.subscribe(func(evt bus.Event) bool {
		switch evt.Type {
		case bus.EventItemCreated, bus.EventItemUpdated, bus.EventItemDeleted:
			return true
		}
		return false
	}, cb)
}

// OnSpacesUpdate invokes cb whenever the space list or its counters change.
func (s *Service) OnSpacesUpdate(cb func(bus.Event)) func() {
	return s.subscribe(func(evt bus.Event) bool {
		return evt.Type == bus.EventSpacesChanged
	}, cb)
}

// OnActiveSpaceChanged invokes cb when the capture target switches.
func (s *Service) OnActiveSpaceChanged(cb func(bus.Event)) func() {
	return s.subscribe(func(evt bus.Event) bool {
		return evt.Type == bus.EventActiveSpace
	}, cb)
}

func progressFilter(kind catalog.JobKind) func(bus.Event) bool {
	return func(evt bus.Event) bool {
		if evt.Type != bus.EventJobProgress {
			return false
		}
		progress, ok := evt.Payload.(bus.Progress)
		return ok && progress.Job == string(kind)
	}
}

// OnAudioExtractProgress streams audio-extraction progress updates.
func (s *Service) OnAudioExtractProgress(cb func(bus.Event)) func() {
	return s.subscribe(progressFilter(catalog.JobExtractAudio), cb)
}

// OnSpeakerIDProgress streams per-chunk speaker-identification progress,
// including partial labeled transcripts.
func (s *Service) OnSpeakerIDProgress(cb func(bus.Event)) func() {
	return s.subscribe(progressFilter(catalog.JobSpeakers), cb)
}

// OnJobProgress streams progress for every job kind.
func (s *Service) OnJobProgress(cb func(bus.Event)) func() {
	return s.subscribe(func(evt bus.Event) bool {
		return evt.Type == bus.EventJobProgress
	}, cb)
}
