package rules

// Origin says where loaded rules came from.
type Origin int

const (
	// OriginPersisted rules were read from the store.
	OriginPersisted Origin = iota
	// OriginFirstRun means nothing was stored yet.
	OriginFirstRun
	// OriginRecovered means the stored record could not be read and
	// defaults were returned instead.
	OriginRecovered
)

func (o Origin) String() string {
	switch o {
	case OriginPersisted:
		return "persisted"
	case OriginFirstRun:
		return "first run"
	case OriginRecovered:
		return "recovered"
	}
	return "unknown"
}

// Store persists rules. Load never fails: a missing or unreadable record
// gives default rules. Save replaces the whole record atomically.
type Store interface {
	Load() (*Rules, Origin)
	Save(r *Rules) error
	Reset() error
}

// record is the persisted form. Lists are sorted so saved files are stable.
type record struct {
	Version          int               `json:"version"`
	ApprovedIncome   []string          `json:"approved_income"`
	ApprovedExpenses []string          `json:"approved_expenses"`
	Savings          []string          `json:"savings_list"`
	CreditCategories map[string]string `json:"credit_categories"`
	ExcludedCredit   []string          `json:"excluded_credit"`

	// The first schema only stored approved income sources.
	ApprovedSources []string `json:"approved_sources,omitempty"`
}

func toRecord(r *Rules) record {
	if r == nil {
		r = New()
	}
	cats := make(map[string]string, len(r.CreditCategories))
	for d, c := range r.CreditCategories {
		cats[d] = c
	}
	return record{
		Version:          CurrentVersion,
		ApprovedIncome:   r.ApprovedIncome.Sorted(),
		ApprovedExpenses: r.ApprovedExpenses.Sorted(),
		Savings:          r.Savings.Sorted(),
		CreditCategories: cats,
		ExcludedCredit:   r.ExcludedCredit.Sorted(),
	}
}

// fromRecord upgrades a record of any schema version. Missing keys become
// empty.
func fromRecord(rec record) (*Rules, bool) {
	r := New()
	for _, d := range rec.ApprovedIncome {
		r.ApprovedIncome.Add(d)
	}
	for _, d := range rec.ApprovedSources {
		r.ApprovedIncome.Add(d)
	}
	for _, d := range rec.ApprovedExpenses {
		r.ApprovedExpenses.Add(d)
	}
	for _, d := range rec.Savings {
		r.Savings.Add(d)
	}
	for d, c := range rec.CreditCategories {
		r.CreditCategories[d] = c
	}
	for _, d := range rec.ExcludedCredit {
		r.ExcludedCredit.Add(d)
	}
	upgraded := rec.Version < CurrentVersion || len(rec.ApprovedSources) > 0
	return r, upgraded
}
