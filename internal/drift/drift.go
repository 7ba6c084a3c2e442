// Package drift derives a coarse fingerprint of the current operating
// context and detects when a class is being exercised outside the context it
// earned trust in. Drift is a safety signal, not a statistics signal: it
// feeds the health evaluator and never touches the outcome counters.
package drift

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// #region context

// Context is the coarse operating situation: time-of-day bucket, workday vs
// weekend, and an optional location category.
type Context struct {
	TimeOfDay string // morning | workday | evening | night
	DayKind   string // workday | weekend
	Location  string // free-form category, may be empty
}

// Current buckets a moment into a Context.
func Current(now time.Time, location string) Context {
	return Context{
		TimeOfDay: timeOfDayBucket(now.Hour()),
		DayKind:   dayKind(now.Weekday()),
		Location:  location,
	}
}

func timeOfDayBucket(hour int) string {
	switch {
	case hour >= 5 && hour < 9:
		return "morning"
	case hour >= 9 && hour < 18:
		return "workday"
	case hour >= 18 && hour < 23:
		return "evening"
	default:
		return "night"
	}
}

func dayKind(d time.Weekday) string {
	if d == time.Saturday || d == time.Sunday {
		return "weekend"
	}
	return "workday"
}

// #endregion context

// #region hash

// Hash returns a short deterministic fingerprint of the context.
func (c Context) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", c.TimeOfDay, c.DayKind, c.Location)))
	return hex.EncodeToString(sum[:8])
}

// #endregion hash

// #region detect

// Detected reports drift between the context a class last earned trust in
// and the live context. A class with no stored hash has never earned trust
// anywhere and is defined as non-drifted.
func Detected(storedHash, currentHash string) bool {
	if storedHash == "" {
		return false
	}
	return storedHash != currentHash
}

// #endregion detect
