package ledger

import "strings"

// DefaultSettlementKeywords name the card issuers whose monthly settlement
// appears as a single bank row.
var DefaultSettlementKeywords = []string{
	"כ.א.ל", "מקס", "ישראכרט", "חיוב לכרטיס", "ויזה",
	"visa", "isracard", "mastercard", "amex", "diners",
}

// Deduplicator removes credit-card settlement charges from bank expenses.
// A settlement for an issuer missing from Keywords is kept, and will be
// counted twice against the itemized credit statement.
type Deduplicator struct {
	Keywords []string
}

func NewDeduplicator(keywords []string) *Deduplicator {
	if keywords == nil {
		keywords = DefaultSettlementKeywords
	}
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &Deduplicator{Keywords: lower}
}

// IsSettlement reports whether a bank row is a card settlement charge.
// Income rows never are.
func (d *Deduplicator) IsSettlement(t Transaction) bool {
	if !t.Amount.IsNegative() {
		return false
	}
	desc := strings.ToLower(t.Description)
	for _, k := range d.Keywords {
		if strings.Contains(desc, k) {
			return true
		}
	}
	return false
}

// Filter splits bank transactions into those to keep and the settlement
// charges. Order is preserved in both.
func (d *Deduplicator) Filter(txns []Transaction) (kept, settlements []Transaction) {
	for _, t := range txns {
		if d.IsSettlement(t) {
			settlements = append(settlements, t)
			continue
		}
		kept = append(kept, t)
	}
	return kept, settlements
}
