package domain

// Capability — именованная область доступа, которую dApp запрашивает у кошелька.
type Capability string

const (
	CapViewAccount Capability = "viewAccount"
	CapSuggestTx   Capability = "suggestTransactions"
)

// AllCapabilities — полный набор, выдаваемый при подключении dApp.
var AllCapabilities = []Capability{CapViewAccount, CapSuggestTx}

// CapabilitySet для быстрых проверок "содержит ли выданный набор запрошенное".
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) Add(c Capability) {
	s[c] = struct{}{}
}

// Missing возвращает запрошенные способности, которых нет в наборе.
// Порядок сохраняется как в requested — важно для детерминизма ответов.
func (s CapabilitySet) Missing(requested []Capability) []Capability {
	missing := make([]Capability, 0)
	for _, c := range requested {
		if !s.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}
