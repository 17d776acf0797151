package enums

type BloodType string

const (
	BloodTypeA  BloodType = "A"
	BloodTypeB  BloodType = "B"
	BloodTypeAB BloodType = "AB"
	BloodTypeO  BloodType = "O"
)

var validBloodTypes = []BloodType{
	BloodTypeA,
	BloodTypeB,
	BloodTypeAB,
	BloodTypeO,
}

func (b BloodType) String() string {
	return string(b)
}

func (b BloodType) IsValid() bool {
	return contains(validBloodTypes, b)
}

// ParseBloodType converts raw input into a BloodType.
func ParseBloodType(value string) (BloodType, error) {
	return parse(validBloodTypes, value, "blood type")
}
