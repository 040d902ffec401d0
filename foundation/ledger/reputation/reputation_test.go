package reputation_test

import (
	"testing"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/reputation"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	alice = []byte{0x02, 0xaa}
	bob   = []byte{0x03, 0xbb}
)

func TestAging(t *testing.T) {
	type step struct {
		ppm   uint64
		delta int64
	}

	tt := []struct {
		name  string
		steps []step
		exp   int64
	}{
		{name: "single-age", steps: []step{{delta: 50_000}, {ppm: 1000}}, exp: 49_950},
		{name: "capped-age", steps: []step{{delta: 1_000_000}, {ppm: 1000}}, exp: 999_900},
		{name: "age-1000-then-2000", steps: []step{{delta: 20_000}, {ppm: 1000}, {ppm: 2000}}, exp: 19_941},
		{name: "age-2000-then-1000", steps: []step{{delta: 20_000}, {ppm: 2000}, {ppm: 1000}}, exp: 19_941},
		{name: "age-then-bump", steps: []step{{delta: 10_000}, {ppm: 2000}, {delta: 40_000}}, exp: 49_980},
		{name: "bump-then-age", steps: []step{{delta: 10_000}, {delta: 40_000}, {ppm: 2000}}, exp: 49_900},
		{name: "negative", steps: []step{{delta: -1_000_000}, {ppm: 1000}}, exp: -999_900},
		{name: "rounds-down", steps: []step{{delta: 999}, {ppm: 1000}}, exp: 999},
	}

	t.Log("Given the need to decay reputation in log order.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen applying %s.", testID, tst.name)
				{
					r := reputation.New()
					r.Change(bob, 10)

					for _, s := range tst.steps {
						switch {
						case s.ppm > 0:
							r.Age(s.ppm)
						default:
							r.Change(alice, s.delta)
						}
					}

					if got := r.Score(alice); got != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould end with %d: got %d", failed, testID, tst.exp, got)
					}
					t.Logf("\t%s\tTest %d:\tShould end with %d.", success, testID, tst.exp)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func TestReset(t *testing.T) {
	r := reputation.New()
	r.Change(alice, 5)
	r.Reset()

	if len(r.Copy()) != 0 {
		t.Fatalf("%s\tShould clear every score.", failed)
	}
	t.Logf("%s\tShould clear every score.", success)
}
