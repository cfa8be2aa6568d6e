package version

import (
	"encoding/json"
	"runtime/debug"
	"strings"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	info := Info{Version: "0.0.0", Branch: "unknown", Revision: "unknown", BuiltAt: "unknown"}
	fillFromBuildInfo(&info, &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2024-05-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	if info.Version != "v1.4.0" || info.Revision != "0123456" || info.BuiltAt != "2024-05-01T12:00:00Z" || !info.Modified {
		t.Errorf("info = %+v", info)
	}
}

func TestFillKeepsLinkerValues(t *testing.T) {
	info := Info{Version: "2.0.0", Revision: "abc", BuiltAt: "today"}
	fillFromBuildInfo(&info, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
	})
	if info.Version != "2.0.0" || info.Revision != "abc" || info.BuiltAt != "today" {
		t.Errorf("info = %+v", info)
	}
}

func TestInfoFormats(t *testing.T) {
	info := Info{Version: "1.0.0", Branch: "main", Revision: "abc", BuiltAt: "now", GoVersion: "go1.24"}
	if !strings.Contains(info.String(), "Version: 1.0.0") {
		t.Errorf("String() = %q", info.String())
	}
	s, err := info.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var back Info
	if err := json.Unmarshal([]byte(s), &back); err != nil || back != info {
		t.Errorf("JSON() = %s (%v)", s, err)
	}
}
