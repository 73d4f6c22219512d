package enums

import "fmt"

// DiscardPolicy selects how discarded quantity is deducted during
// reconciliation. The physical pool is shared per (category, supplier), but
// some deployments attribute discards to the client holding the item.
type DiscardPolicy string

const (
	// DiscardPolicySupplierPool deducts discards from the shared
	// per-(category, supplier) pool regardless of client attribution.
	DiscardPolicySupplierPool DiscardPolicy = "supplier_pool"
	// DiscardPolicyPerClient restricts the discard count to items attributed
	// to the group's client at discard time.
	DiscardPolicyPerClient DiscardPolicy = "per_client"
)

// ParseDiscardPolicy validates a configured policy value.
func ParseDiscardPolicy(value string) (DiscardPolicy, error) {
	switch DiscardPolicy(value) {
	case DiscardPolicySupplierPool:
		return DiscardPolicySupplierPool, nil
	case DiscardPolicyPerClient:
		return DiscardPolicyPerClient, nil
	default:
		return "", fmt.Errorf("invalid discard policy %q", value)
	}
}
