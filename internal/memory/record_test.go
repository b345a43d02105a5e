package memory

import (
	"fmt"
	"testing"
	"time"
)

func TestSummaryRendersRecentItemsInOrder(t *testing.T) {
	rec := DefaultRecord()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 1; i <= 7; i++ {
		rec.addTopic(fmt.Sprintf("t%d", i), at)
	}
	rec.Opinions = append(rec.Opinions, Opinion{Topic: "Rust", Opinion: "borrowck is fine", At: at})
	rec.Preferences["tone"] = "casual"
	rec.Preferences["length"] = "short"
	rec.SessionCount = 3

	want := "Recently discussed topics: t3, t4, t5, t6, t7\n" +
		"User opinions: Rust: borrowck is fine\n" +
		"User preferences: length=short, tone=casual\n" +
		"This is conversation session #4"
	for i := 0; i < 3; i++ {
		if got := rec.Summary(); got != want {
			t.Fatalf("Summary() = %q, want %q", got, want)
		}
	}
}

func TestSummaryEmptyRecord(t *testing.T) {
	if got := DefaultRecord().Summary(); got != "" {
		t.Fatalf("Summary() = %q, want empty", got)
	}
}

func TestAddTopicKeepsLastHundred(t *testing.T) {
	rec := DefaultRecord()
	for i := 0; i < MaxTopics+20; i++ {
		rec.addTopic(fmt.Sprintf("t%d", i), time.Time{})
	}
	if len(rec.TopicsDiscussed) != MaxTopics {
		t.Fatalf("len(TopicsDiscussed) = %d, want %d", len(rec.TopicsDiscussed), MaxTopics)
	}
	if rec.TopicsDiscussed[0].Topic != "t20" {
		t.Fatalf("oldest topic = %q, want t20", rec.TopicsDiscussed[0].Topic)
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	rec := DefaultRecord()
	rec.Preferences["a"] = "1"
	rec.LastSession = &now
	cp := rec.Clone()
	cp.Preferences["a"] = "2"
	*cp.LastSession = now.Add(time.Hour)
	if rec.Preferences["a"] != "1" || !rec.LastSession.Equal(now) {
		t.Fatalf("Clone() shares state with original")
	}
}
