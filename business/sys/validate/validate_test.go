package validate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blacksilk/node/business/sys/validate"
)

type templateRequest struct {
	Address string `json:"address" validate:"required,address"`
	Count   int    `json:"count" validate:"gte=0"`
}

func TestCheck(t *testing.T) {
	good := templateRequest{Address: "0x8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"}
	require.NoError(t, validate.Check(good))

	err := validate.Check(templateRequest{Address: "0x1234", Count: -1})
	require.True(t, validate.IsFieldErrors(err))

	fields := validate.GetFieldErrors(err).Fields()
	require.Len(t, fields, 2)
	require.Contains(t, fields["address"], "0x prefixed")
	require.Contains(t, fields, "count")

	err = validate.Check(templateRequest{})
	require.Contains(t, validate.GetFieldErrors(err).Fields()["address"], "required")
}
