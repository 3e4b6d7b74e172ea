package valkeyx

import "testing"

func TestBuildKey(t *testing.T) {
	if got := BuildKey("token", "user-1"); got != "token:user-1" {
		t.Errorf("BuildKey = %q", got)
	}
	if got := BuildKey("token", "  user-1  "); got != "token:user-1" {
		t.Errorf("BuildKey with padding = %q", got)
	}
}

func TestBuildKey2(t *testing.T) {
	if got := BuildKey2("token", "tiktok", "user-1"); got != "token:tiktok:user-1" {
		t.Errorf("BuildKey2 = %q", got)
	}
}

func TestBuildKey3(t *testing.T) {
	if got := BuildKey3("snapshot", "tiktok", "content-1", "latest"); got != "snapshot:tiktok:content-1:latest" {
		t.Errorf("BuildKey3 = %q", got)
	}
}
