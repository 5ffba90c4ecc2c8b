// Package consolidate reconciles the raw worker reports for one task
// into a single trusted observation.
package consolidate

import "marketprice/internal/model"

const (
	// minMatching is how many identical answers a task needs before
	// its reports are trusted at all.
	minMatching = 2

	minQuantity = 5
	maxQuantity = 500
)

// answerKey is the tuple workers must agree on. The has* flags keep a
// missing field distinct from a zero value when counting votes.
type answerKey struct {
	priceCents  int64
	hasPrice    bool
	quantity    int
	hasQuantity bool
	currency    string
	hasCurrency bool
	inStock     bool
}

// Consolidate decides whether a majority of the task's reports agree
// and builds the Observation from the majority answer. It returns nil
// when no consensus exists or the majority fails the sanity filters;
// unreconcilable tasks are not an error. Ties between equally common
// answers resolve to the first one seen.
func Consolidate(task model.Task, reports []model.RawReport) *model.Observation {
	if len(reports) == 0 {
		return nil
	}

	counts := make(map[answerKey]int, len(reports))
	var order []answerKey
	for _, r := range reports {
		k := keyOf(r)
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	var majority answerKey
	best := 0
	for _, k := range order {
		if counts[k] > best {
			majority, best = k, counts[k]
		}
	}
	if best < minMatching {
		return nil
	}

	// Heuristics to drop obvious crowd-worker noise: packages come in
	// multiples of five units and a zero price is never real.
	if !legitQuantity(majority.quantity) || majority.priceCents == 0 {
		return nil
	}

	obs := model.NewObservation(
		task.CreationTime,
		majority.priceCents,
		majority.currency,
		majority.quantity,
		majority.inStock,
		task.DomainName,
		task.URL,
	)
	return &obs
}

func keyOf(r model.RawReport) answerKey {
	k := answerKey{inStock: r.InStock}
	if r.PriceCents != nil {
		k.priceCents = *r.PriceCents
		k.hasPrice = true
	}
	if r.Quantity != nil {
		k.quantity = *r.Quantity
		k.hasQuantity = true
	}
	if r.Currency != nil {
		k.currency = *r.Currency
		k.hasCurrency = true
	}
	return k
}

func legitQuantity(q int) bool {
	return q >= minQuantity && q <= maxQuantity && q%5 == 0
}
