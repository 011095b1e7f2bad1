package file_test

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/provider/file"
	v1 "ocm.software/open-component-model/appmodel/provider/file/spec/v1"
)

func TestLoadFile(t *testing.T) {
	r := require.New(t)
	ctx := t.Context()

	repo, err := file.LoadFile("testdata/repository.yaml")
	r.NoError(err)
	r.Len(repo.Coordinates(), 11)

	app, err := repo.Resolve(ctx, artifact.MustParseCoordinate("org.acme:app:1.0.0"))
	r.NoError(err)
	r.Equal("2.1.0", app.Properties["rest.version"])
	r.Len(app.Dependencies, 4)
	r.Equal("${rest.version}", app.Dependencies[0].Version)
	r.Equal(artifact.ScopeCompile, app.Dependencies[1].Scope)
	r.Equal(artifact.ScopeProvided, app.Dependencies[2].Scope)

	rest, err := repo.Describe(ctx, artifact.MustParseCoordinate("org.acme:rest:2.1.0"))
	r.NoError(err)
	r.NotNil(rest)
	r.Equal(artifact.MustParseCoordinate("org.acme:rest-deployment:2.1.0"), rest.DeploymentArtifact, "version defaults to the runtime artifact")
	r.Equal([]artifact.Coordinate{artifact.MustParseCoordinate("org.acme:rest-jdbc:2.1.0")}, rest.ConditionalDependencies)
	r.Equal([]string{"rest"}, rest.ProvidesCapabilities)

	jdbc, err := repo.Describe(ctx, artifact.MustParseCoordinate("org.acme:rest-jdbc:2.1.0"))
	r.NoError(err)
	r.Equal([]artifact.Key{artifact.MustParseKey("org.acme:jdbc-driver")}, jdbc.DependencyCondition)

	plain, err := repo.Describe(ctx, artifact.MustParseCoordinate("org.acme:json:1.3"))
	r.NoError(err)
	r.Nil(plain)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		invalid bool
	}{
		{
			name: "minimal",
			doc: `
type: repository.appmodel.ocm.software/v1
artifacts:
- coordinate: org.acme:lib:1.0
`,
		},
		{
			name: "unknown type",
			doc: `
type: repository.appmodel.ocm.software/v2
artifacts: []
`,
			invalid: true,
		},
		{
			name: "missing artifacts",
			doc: `
type: repository.appmodel.ocm.software/v1
`,
			invalid: true,
		},
		{
			name: "unknown scope",
			doc: `
type: repository.appmodel.ocm.software/v1
artifacts:
- coordinate: org.acme:lib:1.0
  dependencies:
  - coordinate: org.acme:other:1.0
    scope: system
`,
			invalid: true,
		},
		{
			name: "extension without deployment artifact",
			doc: `
type: repository.appmodel.ocm.software/v1
artifacts:
- coordinate: org.acme:ext:1.0
  extension:
    conditionalDependencies: [org.acme:other:1.0]
`,
			invalid: true,
		},
		{
			name:    "not yaml",
			doc:     "type: [",
			invalid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := file.Validate([]byte(tt.doc))
			if tt.invalid {
				require.ErrorIs(t, err, file.ErrInvalidDocument)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	r := require.New(t)
	_, err := file.LoadFile("testdata/invalid.yaml")
	r.ErrorIs(err, file.ErrInvalidDocument)

	_, err = file.Load(strings.NewReader(`
type: repository.appmodel.ocm.software/v1
artifacts:
- coordinate: org.acme:lib:1.0
- coordinate: org.acme:lib:1.0
- coordinate: not-a-coordinate
`))
	r.ErrorIs(err, file.ErrInvalidDocument)
	r.ErrorContains(err, "artifacts[1]")
	r.ErrorContains(err, "artifacts[2]")

	_, err = file.LoadFile("testdata/does-not-exist.yaml")
	r.ErrorIs(err, os.ErrNotExist)
}

func TestJSONSchema(t *testing.T) {
	r := require.New(t)
	data, err := v1.JSONSchema()
	r.NoError(err)

	var schema struct {
		Title      string                     `json:"title"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	r.NoError(json.Unmarshal(data, &schema))
	r.Equal("repository.appmodel.ocm.software/v1", schema.Title)
	r.ElementsMatch([]string{"type", "artifacts"}, schema.Required)
	r.Contains(string(schema.Properties["type"]), "repository.appmodel.ocm.software/v1")
}
