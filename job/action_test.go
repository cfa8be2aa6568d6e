package job

import (
	"encoding/json"
	"testing"
)

func TestActionSets(t *testing.T) {
	for _, a := range Actions {
		if !a.Known() || !a.Runnable() {
			t.Errorf("%s should be known and runnable", a)
		}
	}
	if ActionError.Known() {
		t.Error("ERROR must not be a persisted action")
	}
	if !ActionError.Runnable() {
		t.Error("ERROR must be runnable")
	}
	if Action("RENAME").Runnable() {
		t.Error("RENAME should not be runnable")
	}
}

func TestActionFieldRules(t *testing.T) {
	cases := []struct {
		a                    Action
		source, sources, dst bool
	}{
		{ActionCopy, true, false, true},
		{ActionMove, true, false, true},
		{ActionDelete, true, false, false},
		{ActionMerge, false, true, true},
	}
	for _, c := range cases {
		if c.a.NeedsSource() != c.source || c.a.NeedsSources() != c.sources || c.a.NeedsDestination() != c.dst {
			t.Errorf("%s: unexpected field rules", c.a)
		}
	}
}

func TestActionUnmarshalKeepsUnknown(t *testing.T) {
	var s Step
	if err := json.Unmarshal([]byte(`{"id":1,"name":"x","action":"RENAME"}`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Action != "RENAME" {
		t.Errorf("expected RENAME to survive decoding, got %q", s.Action)
	}
	if err := json.Unmarshal([]byte(`{"action":7}`), &s); err == nil {
		t.Error("expected error for non-string action")
	}
}
