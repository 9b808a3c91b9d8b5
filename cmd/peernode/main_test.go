package main

import (
	"reflect"
	"testing"
)

func TestNormalizeBootnode(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:30333", "ws://127.0.0.1:30333/p2p?network=devnet", false},
		{" seed.example:1 ", "ws://seed.example:1/p2p?network=devnet", false},
		{"wss://seed.example", "wss://seed.example/p2p?network=devnet", false},
		{"ws://seed.example/p2p?network=other", "ws://seed.example/p2p?network=devnet", false},
		{"seed.example", "", true},
		{"http://seed.example:1", "", true},
	}
	for _, tc := range testCases {
		got, err := normalizeBootnode(tc.in, "devnet")
		if (err != nil) != tc.wantErr {
			t.Errorf("normalizeBootnode(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("normalizeBootnode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a:1, ,b:2,")
	if want := []string{"a:1", "b:2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("splitList() = %q, want %q", got, want)
	}
}
