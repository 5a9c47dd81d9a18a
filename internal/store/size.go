package store

import (
	"strconv"

	"github.com/pkg/errors"
)

// Size is a byte count. It is serialized as a decimal string in JSON so
// that values above 2^53 survive JavaScript clients.
type Size int64

func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(s), 10))), nil
}

func (s *Size) UnmarshalJSON(data []byte) error {
	raw := string(data)

	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "could not parse size '%s'", string(data))
	}

	*s = Size(value)

	return nil
}
