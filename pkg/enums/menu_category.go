package enums

// MenuCategory groups canteen menu items.
type MenuCategory string

const (
	MenuCategoryFood  MenuCategory = "food"
	MenuCategoryDrink MenuCategory = "drink"
	MenuCategorySnack MenuCategory = "snack"
)

var validMenuCategories = []MenuCategory{
	MenuCategoryFood,
	MenuCategoryDrink,
	MenuCategorySnack,
}

func (c MenuCategory) String() string {
	return string(c)
}

func (c MenuCategory) IsValid() bool {
	return contains(validMenuCategories, c)
}

// ParseMenuCategory converts raw input into a MenuCategory.
func ParseMenuCategory(value string) (MenuCategory, error) {
	return parse(validMenuCategories, value, "menu category")
}
