package twitchadapter

import "testing"

func TestHasBadge(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"subscriber/12,premium/1", true},
		{"founder/0", true},
		{"moderator/1,partner/1", false},
		{"", false},
		{"sub-gifter/5", false},
	}
	for _, c := range cases {
		if got := hasBadge(c.raw, "subscriber", "founder"); got != c.want {
			t.Errorf("hasBadge(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}
