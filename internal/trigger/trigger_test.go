package trigger

import "testing"

func TestExecuteMatchesEventAndPartition(t *testing.T) {
	r := New()
	var got []string
	r.Register(EventPlayer, "default", HandlerFunc(func(event Event, partition string) {
		got = append(got, string(event)+"@"+partition)
	}))
	r.Register(EventPlayer, "other", HandlerFunc(func(event Event, partition string) {
		got = append(got, "should-not-fire")
	}))
	r.Register(EventMixer, "default", HandlerFunc(func(event Event, partition string) {
		got = append(got, "should-not-fire")
	}))

	r.Execute(EventPlayer, "default")

	if len(got) != 1 || got[0] != "player@default" {
		t.Fatalf("got %v", got)
	}
}

func TestExecuteWildcardPartitionMatchesAny(t *testing.T) {
	r := New()
	fired := 0
	r.Register(EventDatabase, "", HandlerFunc(func(event Event, partition string) {
		fired++
	}))

	r.Execute(EventDatabase, "default")
	r.Execute(EventDatabase, "other")

	if fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
}

func TestExecuteNoMatchesIsNoop(t *testing.T) {
	r := New()
	r.Execute(EventUpdate, "default")
}
