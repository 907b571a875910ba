package jobs

import (
	"testing"
	"time"

	"github.com/sandeshsk12/port/models"
)

func TestCreateAndGet(t *testing.T) {
	s := New(10, time.Hour)

	job := s.Create("https://example.test/", "/tmp/out")
	if job.ID == "" {
		t.Fatal("job should get an ID")
	}
	if job.Status != models.JobStatusProcessing {
		t.Errorf("status = %q, want processing", job.Status)
	}

	got, ok := s.Get(job.ID)
	if !ok {
		t.Fatal("job should be retrievable")
	}
	if got.URL != "https://example.test/" {
		t.Errorf("url = %q", got.URL)
	}
}

func TestGet_Unknown(t *testing.T) {
	s := New(10, time.Hour)
	if _, ok := s.Get("nope"); ok {
		t.Error("unknown ID should not be found")
	}
}

func TestUpdate(t *testing.T) {
	s := New(10, time.Hour)
	job := s.Create("https://example.test/", "")

	s.Update(job.ID, func(j *models.MirrorJob) {
		j.Status = models.JobStatusCompleted
		j.Completed = 3
		j.Total = 3
	})

	got, _ := s.Get(job.ID)
	if got.Status != models.JobStatusCompleted || got.Completed != 3 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	s := New(10, time.Hour)
	job := s.Create("https://example.test/", "")
	s.Update(job.ID, func(j *models.MirrorJob) {
		j.Pages = append(j.Pages, models.PageResult{URL: "https://example.test/a"})
	})

	snap, _ := s.Get(job.ID)
	snap.Status = "mutated"
	snap.Pages[0].URL = "mutated"

	fresh, _ := s.Get(job.ID)
	if fresh.Status == "mutated" || fresh.Pages[0].URL == "mutated" {
		t.Error("Get should return a copy, not the live job")
	}
}

func TestCapacityEviction(t *testing.T) {
	s := New(3, time.Hour)
	for i := 0; i < 5; i++ {
		s.Create("https://example.test/", "")
	}
	if s.Len() > 3 {
		t.Errorf("store should stay at capacity, got %d entries", s.Len())
	}
}

func TestUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newID()
		if seen[id] {
			t.Fatalf("duplicate ID %q", id)
		}
		seen[id] = true
	}
}
