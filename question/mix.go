package question

import (
	"math"
	"sort"
)

// ParseMix converts a config map keyed by kind name, dropping unknown kinds
// and shares that are not positive finite numbers.
func ParseMix(raw map[string]float64) TypeMix {
	mix := make(TypeMix, len(raw))
	for name, share := range raw {
		k := Kind(name)
		if ValidKind(k) && usableShare(share) {
			mix[k] = share
		}
	}
	return mix
}

func usableShare(share float64) bool {
	return share > 0 && !math.IsInf(share, 0) && !math.IsNaN(share)
}

// Quotas splits count across the kinds of mix using largest remainders, so
// the quotas always add up to count. An empty mix puts everything on trivia.
func Quotas(count int, mix TypeMix) map[Kind]int {
	quotas := make(map[Kind]int)
	if count <= 0 {
		return quotas
	}

	var total float64
	for _, k := range Kinds {
		if share := mix[k]; usableShare(share) {
			total += share
		}
	}
	if total == 0 {
		quotas[KindTrivia] = count
		return quotas
	}

	type remainder struct {
		kind Kind
		frac float64
	}
	var rems []remainder
	assigned := 0
	for _, k := range Kinds {
		share := mix[k]
		if !usableShare(share) {
			continue
		}
		exact := float64(count) * share / total
		whole := int(math.Floor(exact))
		quotas[k] = whole
		assigned += whole
		rems = append(rems, remainder{kind: k, frac: exact - float64(whole)})
	}

	// Ties go to the kind listed first in Kinds.
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < count; i++ {
		quotas[rems[i%len(rems)].kind]++
		assigned++
	}
	return quotas
}
