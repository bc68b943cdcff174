package daemon

import (
	"strconv"

	"radiocap/internal/services"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func errNotFoundForTest() error {
	return services.Wrap(services.ErrNotFound, "test", "lookup", "", nil)
}

func errExhaustedForTest() error {
	return services.Wrap(services.ErrResourceExhausted, "test", "slot", "", nil)
}
