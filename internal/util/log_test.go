package util

import "testing"

func TestEnableDebug(t *testing.T) {
	if DebugEnabled() {
		t.Fatal("debug enabled before EnableDebug")
	}
	EnableDebug()
	if !DebugEnabled() {
		t.Error("EnableDebug() did not enable debug output")
	}
}
