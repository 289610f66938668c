package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator returns a fresh local job id on every call.
type IDGenerator func() string

// NewIDGenerator returns the generator for a queue.id_format value.
func NewIDGenerator(format string) (IDGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "uuid":
		return uuid.NewString, nil
	case "ulid":
		return func() string { return ulid.Make().String() }, nil
	default:
		return nil, fmt.Errorf("unsupported job id format %q", format)
	}
}
