package gateway

import "testing"

func TestStats_SnapshotComputesHitRateAndAverage(t *testing.T) {
	s := NewStats(10)
	s.Record(RequestRecord{Path: "/a", Status: 200, ResponseTimeMs: 10, CacheHit: true})
	s.Record(RequestRecord{Path: "/a", Status: 200, ResponseTimeMs: 30, CacheHit: false})

	snap := s.Snapshot()
	if snap.RequestCount != 2 {
		t.Fatalf("expected 2 requests, got %d", snap.RequestCount)
	}
	if snap.CacheHitRate != 50 {
		t.Fatalf("expected 50%% hit rate, got %v", snap.CacheHitRate)
	}
	if snap.AvgResponseTimeMs != 20 {
		t.Fatalf("expected avg 20ms, got %v", snap.AvgResponseTimeMs)
	}
}

func TestStats_RateLimitedCountTracks429s(t *testing.T) {
	s := NewStats(10)
	s.Record(RequestRecord{Status: 429})
	s.Record(RequestRecord{Status: 200})

	if got := s.Snapshot().RateLimitedCount; got != 1 {
		t.Fatalf("expected 1 rate-limited request, got %d", got)
	}
}

func TestStats_RingWrapsAtCapacity(t *testing.T) {
	s := NewStats(2)
	s.Record(RequestRecord{Path: "/1"})
	s.Record(RequestRecord{Path: "/2"})
	s.Record(RequestRecord{Path: "/3"})

	recent := s.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected ring capped at 2, got %d", len(recent))
	}
	if recent[0].Path != "/2" || recent[1].Path != "/3" {
		t.Fatalf("expected oldest entry evicted, got %+v", recent)
	}
}
