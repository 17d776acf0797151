package enums

// CardStatus is the lifecycle state of a member's physical card.
type CardStatus string

const (
	CardStatusActive   CardStatus = "active"
	CardStatusInactive CardStatus = "inactive"
	CardStatusLost     CardStatus = "lost"
	CardStatusBlocked  CardStatus = "blocked"
)

var validCardStatuses = []CardStatus{
	CardStatusActive,
	CardStatusInactive,
	CardStatusLost,
	CardStatusBlocked,
}

// String implements fmt.Stringer.
func (c CardStatus) String() string {
	return string(c)
}

// IsValid reports whether the value matches a known CardStatus.
func (c CardStatus) IsValid() bool {
	return contains(validCardStatuses, c)
}

// CanTransact reports whether purchases may be charged to a card in this state.
func (c CardStatus) CanTransact() bool {
	return c == CardStatusActive
}

// ParseCardStatus converts raw input into a CardStatus.
func ParseCardStatus(value string) (CardStatus, error) {
	return parse(validCardStatuses, value, "card status")
}
