package ledger

// AccountResolver looks up the cash account backing an order owner. It is
// supplied by the banking-account subsystem; the engine never creates or
// deletes accounts itself.
type AccountResolver interface {
	// ResolveAccount returns the transactional account for an owner, or
	// ErrAccountNotFound.
	ResolveAccount(ownerID string) (*Account, error)
}

// StaticResolver is an AccountResolver over a fixed set of accounts,
// keyed by owner id. Used in tests and single-process deployments.
type StaticResolver struct {
	accounts map[string]*Account
}

// NewStaticResolver builds a resolver from the given accounts.
func NewStaticResolver(accounts ...*Account) *StaticResolver {
	m := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		m[a.OwnerID()] = a
	}
	return &StaticResolver{accounts: m}
}

// ResolveAccount implements AccountResolver.
func (r *StaticResolver) ResolveAccount(ownerID string) (*Account, error) {
	a, ok := r.accounts[ownerID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// Add registers an additional account.
func (r *StaticResolver) Add(a *Account) {
	r.accounts[a.OwnerID()] = a
}
