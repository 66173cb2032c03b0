package runtypes

import "testing"

func TestStreamEventTransientOnlyForTitleAndSuggestions(t *testing.T) {
	cases := []struct {
		ev   StreamEvent
		want bool
	}{
		{StreamEvent{Type: EventTitleUpdate}, true},
		{StreamEvent{Type: EventSuggestions}, true},
		{StreamEvent{Type: EventTextDelta}, false},
		{StreamEvent{Type: EventToolResult}, false},
		{StreamEvent{Type: EventError}, false},
	}
	for _, c := range cases {
		if got := c.ev.Transient(); got != c.want {
			t.Errorf("Transient() for %q = %v, want %v", c.ev.Type, got, c.want)
		}
	}
}
