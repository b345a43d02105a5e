// Package memory keeps the per-session turn log and the durable cross-session
// record, and assembles the context block sent with every generation.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxTopics bounds the topics-discussed list. Opinions are never trimmed.
const MaxTopics = 100

const summaryItems = 5

type TopicEntry struct {
	Topic string    `json:"topic"`
	At    time.Time `json:"timestamp"`
}

type Opinion struct {
	Topic   string    `json:"topic"`
	Opinion string    `json:"opinion"`
	At      time.Time `json:"timestamp"`
}

// Record is the durable profile shared by every session of one listener.
type Record struct {
	TopicsDiscussed []TopicEntry      `json:"topics_discussed"`
	Opinions        []Opinion         `json:"user_opinions"`
	Preferences     map[string]string `json:"preferences"`
	SessionCount    int               `json:"conversation_count"`
	LastSession     *time.Time        `json:"last_session"`
}

func DefaultRecord() Record {
	return Record{
		TopicsDiscussed: []TopicEntry{},
		Opinions:        []Opinion{},
		Preferences:     map[string]string{},
	}
}

// normalize fills nil collections left by older or partial documents.
func (r Record) normalize() Record {
	if r.TopicsDiscussed == nil {
		r.TopicsDiscussed = []TopicEntry{}
	}
	if r.Opinions == nil {
		r.Opinions = []Opinion{}
	}
	if r.Preferences == nil {
		r.Preferences = map[string]string{}
	}
	return r
}

func (r Record) Clone() Record {
	out := Record{
		TopicsDiscussed: append([]TopicEntry{}, r.TopicsDiscussed...),
		Opinions:        append([]Opinion{}, r.Opinions...),
		Preferences:     make(map[string]string, len(r.Preferences)),
		SessionCount:    r.SessionCount,
	}
	for k, v := range r.Preferences {
		out.Preferences[k] = v
	}
	if r.LastSession != nil {
		t := *r.LastSession
		out.LastSession = &t
	}
	return out
}

func (r *Record) addTopic(topic string, at time.Time) {
	r.TopicsDiscussed = append(r.TopicsDiscussed, TopicEntry{Topic: topic, At: at})
	if n := len(r.TopicsDiscussed); n > MaxTopics {
		r.TopicsDiscussed = append([]TopicEntry{}, r.TopicsDiscussed[n-MaxTopics:]...)
	}
}

// Summary renders the record for prompt injection. Output depends only on the
// record, so map iteration goes through sorted keys.
func (r Record) Summary() string {
	var parts []string

	if recent := lastN(len(r.TopicsDiscussed), summaryItems); recent > 0 {
		names := make([]string, 0, recent)
		for _, t := range r.TopicsDiscussed[len(r.TopicsDiscussed)-recent:] {
			names = append(names, t.Topic)
		}
		parts = append(parts, "Recently discussed topics: "+strings.Join(names, ", "))
	}

	if recent := lastN(len(r.Opinions), summaryItems); recent > 0 {
		ops := make([]string, 0, recent)
		for _, o := range r.Opinions[len(r.Opinions)-recent:] {
			ops = append(ops, o.Topic+": "+o.Opinion)
		}
		parts = append(parts, "User opinions: "+strings.Join(ops, "; "))
	}

	if len(r.Preferences) > 0 {
		keys := make([]string, 0, len(r.Preferences))
		for k := range r.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		prefs := make([]string, 0, len(keys))
		for _, k := range keys {
			prefs = append(prefs, k+"="+r.Preferences[k])
		}
		parts = append(parts, "User preferences: "+strings.Join(prefs, ", "))
	}

	if r.SessionCount > 0 {
		parts = append(parts, fmt.Sprintf("This is conversation session #%d", r.SessionCount+1))
	}
	return strings.Join(parts, "\n")
}

func lastN(have, want int) int {
	if have < want {
		return have
	}
	return want
}
