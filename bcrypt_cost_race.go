//go:build race

package credentials

import "golang.org/x/crypto/bcrypt"

// DefaultHashCost is the bcrypt cost factor used for stored credentials.
const DefaultHashCost = 12

func passwordHashCost() int {
	// Reduce cost for race-enabled builds so test suites can run with strict timeouts.
	return bcrypt.DefaultCost
}
