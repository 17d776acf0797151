package enums

// UserRole is the authorization role carried by an operator account.
type UserRole string

const (
	UserRoleAdmin           UserRole = "admin"
	UserRoleUser            UserRole = "user"
	UserRoleCanteenOperator UserRole = "canteen_operator"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleUser,
	UserRoleCanteenOperator,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value matches a known UserRole.
func (r UserRole) IsValid() bool {
	return contains(validUserRoles, r)
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	return parse(validUserRoles, value, "user role")
}
