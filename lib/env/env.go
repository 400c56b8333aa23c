package env

import (
	"os"
)

func Debug() bool {
	return os.Getenv("DEBUG") != ""
}

// Verify enables the layout's internal consistency checks: solver results are
// checked for overlaps and containment, and non-finite accelerations panic.
func Verify() bool {
	return Debug() || os.Getenv("D2_INCREMENTAL_VERIFY") != ""
}
