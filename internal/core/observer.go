package core

import (
	"log"
	"time"
)

// Observer receives per-source outcomes of a poll. Implementations must be
// safe for concurrent use.
type Observer interface {
	SourceFetched(sourceID string, records []UsageRecord, took time.Duration, err error)
}

type LogObserver struct{}

func (LogObserver) SourceFetched(sourceID string, records []UsageRecord, took time.Duration, err error) {
	if err != nil {
		log.Printf("engine: %s failed after %s: %v", sourceID, took.Round(time.Millisecond), err)
		return
	}
	available := 0
	for _, r := range records {
		if r.Available {
			available++
		}
	}
	log.Printf("engine: %s returned %d records (%d available) in %s", sourceID, len(records), available, took.Round(time.Millisecond))
}

type nopObserver struct{}

func (nopObserver) SourceFetched(string, []UsageRecord, time.Duration, error) {}
