package auth

// PredicateKind classifies a query-level data restriction.
type PredicateKind int

const (
	// PredicateDenyAll matches no rows. Reads render as an empty result,
	// never as an error; writes must reject with PermissionDenied instead.
	PredicateDenyAll PredicateKind = iota

	// PredicateUnrestricted matches every row (cross-tenant principal
	// holding an :all grant).
	PredicateUnrestricted

	// PredicateTenantOnly restricts to the principal's tenant.
	PredicateTenantOnly

	// PredicateOwnerOnly restricts to the principal's tenant AND rows whose
	// owner field equals the principal's subject id.
	PredicateOwnerOnly
)

// ScopePredicate is the query-level translation of an allowed permission
// scope. Stores apply it when building list/read statements.
type ScopePredicate struct {
	Kind     PredicateKind
	TenantID string // set for TenantOnly/OwnerOnly
	OwnerID  string // set for OwnerOnly
}

// ScopeFilter translates the Check decision for (resource, action) into a
// row predicate. Denied principals get DenyAll, not an error.
func ScopeFilter(p *Principal, resource, action string) ScopePredicate {
	d := Check(p, resource, action)
	if !d.Allowed {
		return ScopePredicate{Kind: PredicateDenyAll}
	}
	switch d.Scope {
	case ScopeAll:
		if p.IsSuperAdmin() {
			return ScopePredicate{Kind: PredicateUnrestricted}
		}
		return ScopePredicate{Kind: PredicateTenantOnly, TenantID: p.Tenant()}
	case ScopeOwn:
		return ScopePredicate{
			Kind:     PredicateOwnerOnly,
			TenantID: p.Tenant(),
			OwnerID:  p.SubjectID,
		}
	default:
		// Unscoped grants never reach here; Check only allows all/own.
		return ScopePredicate{Kind: PredicateDenyAll}
	}
}
