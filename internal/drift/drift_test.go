package drift

import (
	"testing"
	"time"
)

// mustTime parses a reference moment for bucket tests.
func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestTimeOfDayBuckets(t *testing.T) {
	cases := []struct {
		when string
		want string
	}{
		{"2026-08-26T06:30:00Z", "morning"},
		{"2026-08-26T10:00:00Z", "workday"},
		{"2026-08-26T19:00:00Z", "evening"},
		{"2026-08-26T02:00:00Z", "night"},
		{"2026-08-26T23:30:00Z", "night"},
	}
	for _, tc := range cases {
		c := Current(mustTime(t, tc.when), "")
		if c.TimeOfDay != tc.want {
			t.Errorf("%s: bucket = %s, want %s", tc.when, c.TimeOfDay, tc.want)
		}
	}
}

func TestDayKind(t *testing.T) {
	// 2026-08-26 is a Wednesday, 2026-08-29 a Saturday.
	if c := Current(mustTime(t, "2026-08-26T10:00:00Z"), ""); c.DayKind != "workday" {
		t.Fatalf("wednesday = %s", c.DayKind)
	}
	if c := Current(mustTime(t, "2026-08-29T10:00:00Z"), ""); c.DayKind != "weekend" {
		t.Fatalf("saturday = %s", c.DayKind)
	}
}

func TestHashDeterministic(t *testing.T) {
	now := mustTime(t, "2026-08-26T10:00:00Z")
	a := Current(now, "home").Hash()
	b := Current(now, "home").Hash()
	if a != b {
		t.Fatalf("same context hashed differently: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("hash length = %d, want 16", len(a))
	}
}

func TestHashDistinguishesContexts(t *testing.T) {
	now := mustTime(t, "2026-08-26T10:00:00Z")
	home := Current(now, "home").Hash()
	office := Current(now, "office").Hash()
	if home == office {
		t.Fatal("different locations share a hash")
	}
	evening := Current(mustTime(t, "2026-08-26T20:00:00Z"), "home").Hash()
	if home == evening {
		t.Fatal("different time buckets share a hash")
	}
}

func TestDetectedEmptyStoredIsNotDrift(t *testing.T) {
	if Detected("", "abc123") {
		t.Fatal("class with no stored hash reported drift")
	}
}

func TestDetectedInequalityIsDrift(t *testing.T) {
	if !Detected("aaa", "bbb") {
		t.Fatal("differing hashes should drift")
	}
	if Detected("aaa", "aaa") {
		t.Fatal("equal hashes should not drift")
	}
}
