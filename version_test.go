package netguard

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	if !strings.HasPrefix(v, "netguard v"+Version) {
		t.Errorf("Unexpected version string %q", v)
	}
	info := GetVersionInfo()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if _, ok := info[key]; !ok {
			t.Errorf("Missing %s in version info", key)
		}
	}
	if UserAgent() != "netguard/"+Version {
		t.Errorf("Unexpected user agent %q", UserAgent())
	}
}
