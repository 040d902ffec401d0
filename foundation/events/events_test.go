package events_test

import (
	"encoding/json"
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestSend(t *testing.T) {
	t.Log("Given the need to fan events out to subscribers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two subscribers are registered.", testID)
		{
			evts := events.NewEvents()
			a := evts.Acquire("a")
			b := evts.Acquire("b")

			if err := evts.Send(events.New("state: transfer: committed")); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send: %v", failed, testID, err)
			}

			for _, ch := range []<-chan []byte{a, b} {
				var e events.Event
				if err := json.Unmarshal(<-ch, &e); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould receive JSON: %v", failed, testID, err)
				}
				if e.Kind != "state" {
					t.Fatalf("\t%s\tTest %d:\tShould derive the kind from the prefix: got %q", failed, testID, e.Kind)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould deliver the event to both.", success, testID)

			if err := evts.Release("a"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to release: %v", failed, testID, err)
			}
			if _, open := <-a; open {
				t.Fatalf("\t%s\tTest %d:\tShould close the released channel.", failed, testID)
			}
			if evts.Subscribers() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep one subscriber: got %d", failed, testID, evts.Subscribers())
			}
			t.Logf("\t%s\tTest %d:\tShould close the released channel.", success, testID)

			evts.Shutdown()
			if _, open := <-b; open {
				t.Fatalf("\t%s\tTest %d:\tShould close every channel on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close every channel on shutdown.", success, testID)
		}
	}
}
