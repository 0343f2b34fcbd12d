package mpdconn

import "testing"

func TestClampPriority(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 128: 128, 255: 255, 400: 255}
	for in, want := range cases {
		if got := clampPriority(in); got != want {
			t.Fatalf("clampPriority(%d) = %d, want %d", in, got, want)
		}
	}
}
