package memory

import "testing"

func TestMarkerExtractor(t *testing.T) {
	e := NewMarkerExtractor()
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"I think AI is overhyped.", "AI is overhyped", true},
		{"honestly, remote work is better!", "remote work is better", true},
		{"I believe that cities need more trains", "cities need more trains", true},
		{"I don't like tabs", "tabs", true},
		{"Well, that was actually fun.", "Well, that was actually fun", true},
		{"Tell me more about the history", "", false},
		{"Ithink nothing", "", false},
		{"", "", false},
		{"I think.", "", false},
		{"I agree, email me at sam@example.com", "email me at [REDACTED_EMAIL]", true},
	}
	for _, tc := range cases {
		got, ok := e.Extract(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Extract(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
