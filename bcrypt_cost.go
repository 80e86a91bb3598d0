//go:build !race

package credentials

// DefaultHashCost is the bcrypt cost factor used for stored credentials.
const DefaultHashCost = 12

func passwordHashCost() int {
	return DefaultHashCost
}
