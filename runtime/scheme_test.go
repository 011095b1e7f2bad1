package runtime_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/appmodel/runtime"
)

type testDoc struct {
	Type  runtime.Type `json:"type"`
	Value string       `json:"value"`
}

func (t *testDoc) GetType() runtime.Type { return t.Type }

func TestSchemeDecode(t *testing.T) {
	r := require.New(t)
	typ := runtime.NewType("test.appmodel.ocm.software", "v1")

	scheme := runtime.NewScheme()
	scheme.MustRegisterWithAlias(&testDoc{}, typ, "test/v1")
	r.True(scheme.IsRegistered("test/v1"))
	r.Error(scheme.RegisterWithAlias(&testDoc{}, typ))

	obj, err := scheme.Decode(strings.NewReader("type: test/v1\nvalue: hello\n"))
	r.NoError(err)
	doc, ok := obj.(*testDoc)
	r.True(ok)
	r.Equal("hello", doc.Value)
	r.Equal("v1", doc.GetType().GetVersion())

	_, err = scheme.Decode(strings.NewReader("type: unknown/v1\n"))
	r.ErrorContains(err, "unsupported type")

	_, err = scheme.Decode(strings.NewReader("value: hello\n"))
	r.ErrorContains(err, "no type")

	_, err = scheme.Decode(strings.NewReader("type: test/v1\nunknownField: 1\n"))
	r.Error(err)
}

func TestParseType(t *testing.T) {
	r := require.New(t)
	typ, err := runtime.ParseType("repository.appmodel.ocm.software/v1")
	r.NoError(err)
	r.Equal("repository.appmodel.ocm.software", typ.GetName())
	r.Equal("v1", typ.GetVersion())

	for _, invalid := range []string{"noversion", "/v1", "name/", "a/b/c"} {
		_, err := runtime.ParseType(invalid)
		r.Error(err, invalid)
	}
}
