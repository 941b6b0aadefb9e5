package model

// Role is the acting user's role, always passed explicitly to ledger
// operations rather than read from ambient request state.
type Role string

const (
	RoleMember       Role = "MEMBER"
	RoleProfessional Role = "PROFESSIONAL"
	RoleAdmin        Role = "ADMIN"
)

// memberTransferLimit caps how many credits a MEMBER may send in one transfer.
const memberTransferLimit int64 = 50

// TransferLimit returns the per-transfer cap for a role and whether the role
// may transfer at all. A limit of 0 means uncapped.
func TransferLimit(r Role) (limit int64, allowed bool) {
	switch r {
	case RoleMember:
		return memberTransferLimit, true
	case RoleProfessional, RoleAdmin:
		return 0, true
	default:
		return 0, false
	}
}
