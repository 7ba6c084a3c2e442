// Package classify derives the stable identity of an effect: the class key
// under which outcome statistics accumulate. Classification is pure and
// deterministic — the same payload shape always maps to the same key.
package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/pulse/go-core/internal/effect"
)

// #region domains

// knownDomains are the domains the assistant currently ships adapters for.
// Anything else fingerprints to the constant default bucket.
var knownDomains = map[string]bool{
	"tasks":      true,
	"chef":       true,
	"grocery":    true,
	"planning":   true,
	"life_state": true,
}

// discriminators maps domains whose payloads carry an explicit operation
// discriminator to the field holding it. Using the discriminator keeps
// semantically distinct operations that share a payload shape from
// collapsing into one class.
var discriminators = map[string]string{
	"life_state": "action",
	"planning":   "action",
}

// DefaultFingerprint is the bucket for domains the classifier does not know.
const DefaultFingerprint = "default"

// #endregion domains

// #region classification

// Classification identifies the autonomy class an effect belongs to.
type Classification struct {
	ClassKey    string
	Fingerprint string
	Domain      string
	EffectType  effect.Type
}

// #endregion classification

// #region classify

// Classify derives the class key for an effect: domain:effectType:fingerprint.
func Classify(e effect.Effect) Classification {
	fp := fingerprint(e)
	return Classification{
		ClassKey:    fmt.Sprintf("%s:%s:%s", e.Domain, e.Type, fp),
		Fingerprint: fp,
		Domain:      e.Domain,
		EffectType:  e.Type,
	}
}

// fingerprint computes the structural fingerprint of an effect payload.
// Discriminator domains use the discriminator value; everything else uses
// the sorted set of payload keys.
func fingerprint(e effect.Effect) string {
	if !knownDomains[e.Domain] {
		return DefaultFingerprint
	}

	if field, ok := discriminators[e.Domain]; ok {
		if v, ok := e.Payload[field].(string); ok && v != "" {
			return "action_" + v
		}
	}

	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "struct_" + strings.Join(keys, "_")
}

// #endregion classify
