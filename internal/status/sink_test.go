package status

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-10, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{140, 100},
	}

	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestChannelSink_DeliversEvents(t *testing.T) {
	sink := NewChannelSink(4)

	sink.UpdateStatus("Running")
	sink.UpdateProgress(120)
	sink.Clear()
	sink.Close()

	var events []Event
	for ev := range sink.Events() {
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Kind != EventStatus || events[0].Text != "Running" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Kind != EventProgress || events[1].Percent != 100 {
		t.Errorf("event 1 = %+v, want clamped progress 100", events[1])
	}
	if events[2].Kind != EventClear {
		t.Errorf("event 2 = %+v", events[2])
	}
}

func TestChannelSink_NeverBlocks(t *testing.T) {
	// Buffer of one, no consumer: further sends must drop, not block.
	sink := NewChannelSink(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sink.UpdateProgress(i)
		}
		close(done)
	}()

	<-done
	if ev := <-sink.Events(); ev.Percent != 0 {
		t.Errorf("first buffered event = %+v, want progress 0", ev)
	}
}
