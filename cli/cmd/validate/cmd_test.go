package validate_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/appmodel/cli/cmd/validate"
	"ocm.software/open-component-model/appmodel/provider/file"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := validate.New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	r := require.New(t)

	out, err := run(t, "../../../provider/file/testdata/repository.yaml")
	r.NoError(err)
	r.Contains(out, "is valid, 11 artifacts")

	_, err = run(t, "../../../provider/file/testdata/invalid.yaml")
	r.ErrorIs(err, file.ErrInvalidDocument)

	_, err = run(t)
	r.Error(err)
}

func TestPrintSchema(t *testing.T) {
	r := require.New(t)
	out, err := run(t, "--schema")
	r.NoError(err)
	r.Contains(out, `"$schema"`)
	r.Contains(out, "repository.appmodel.ocm.software/v1")
}
