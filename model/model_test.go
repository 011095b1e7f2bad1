package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/appmodel/artifact"
	"ocm.software/open-component-model/appmodel/model"
)

func TestFlags(t *testing.T) {
	r := require.New(t)

	f := model.FlagDirect | model.FlagRuntimeCP | model.FlagRuntimeExtensionArtifact
	r.True(f.Has(model.FlagDirect | model.FlagRuntimeCP))
	r.False(f.Has(model.FlagDirect | model.FlagDeploymentCP))
	r.True(f.Any(model.FlagDirect | model.FlagDeploymentCP))
	r.Equal("DIRECT|RUNTIME_CP|RUNTIME_EXTENSION_ARTIFACT", f.String())

	parsed, err := model.ParseFlags("direct, RUNTIME_CP|runtime_extension_artifact")
	r.NoError(err)
	r.Equal(f, parsed)
	_, err = model.ParseFlags("UNKNOWN")
	r.Error(err)

	data, err := json.Marshal(f)
	r.NoError(err)
	r.JSONEq(`["DIRECT","RUNTIME_CP","RUNTIME_EXTENSION_ARTIFACT"]`, string(data))
	var back model.Flags
	r.NoError(json.Unmarshal(data, &back))
	r.Equal(f, back)
	r.Empty(model.Flags(0).String())
}

func testModel() *model.ApplicationModel {
	lib := artifact.MustParseCoordinate("org.acme:lib:1.0")
	ext := artifact.MustParseCoordinate("org.acme:ext:1.0")
	extDeployment := artifact.MustParseCoordinate("org.acme:ext-deployment:1.0")
	api := artifact.MustParseCoordinate("org.acme:api:1.0")
	return &model.ApplicationModel{
		Application: model.ResolvedDependency{Coordinate: artifact.MustParseCoordinate("org.acme:app:1.0")},
		Mode:        "prod",
		Dependencies: []model.ResolvedDependency{
			{Coordinate: ext, Scope: artifact.ScopeCompile, Flags: model.FlagDirect | model.FlagRuntimeCP | model.FlagDeploymentCP | model.FlagRuntimeExtensionArtifact | model.FlagTopLevelRuntimeExtensionArtifact},
			{Coordinate: lib, Scope: artifact.ScopeCompile, Flags: model.FlagRuntimeCP | model.FlagDeploymentCP},
			{Coordinate: extDeployment, Scope: artifact.ScopeCompile, Flags: model.FlagDeploymentCP},
			{Coordinate: api, Scope: artifact.ScopeProvided, Flags: model.FlagDirect | model.FlagCompileOnly},
		},
		Extensions: []model.Extension{{Runtime: ext, Deployment: extDeployment, Activation: model.ActivationDirect, Round: 1}},
	}
}

func TestViews(t *testing.T) {
	r := require.New(t)
	m := testModel()

	r.Len(m.Runtime(), 2)
	r.Len(m.Deployment(), 3)
	r.Len(m.CompileOnly(), 1)
	r.Len(m.Filter(model.FlagTopLevelRuntimeExtensionArtifact), 1)

	d, ok := m.Dependency(artifact.NewKey("org.acme", "lib"))
	r.True(ok)
	r.Equal("1.0", d.Coordinate.Version)
	_, ok = m.Dependency(artifact.NewKey("org.acme", "nope"))
	r.False(ok)

	ext, ok := m.Extension(artifact.NewKey("org.acme", "ext"))
	r.True(ok)
	r.Equal("ext-deployment", ext.Deployment.ArtifactID)
}

func TestDigest(t *testing.T) {
	r := require.New(t)

	first, err := testModel().Digest()
	r.NoError(err)
	second, err := testModel().Digest()
	r.NoError(err)
	r.Equal(first, second)
	r.NoError(first.Validate())

	changed := testModel()
	changed.Dependencies[1].Coordinate.Version = "1.1"
	third, err := changed.Digest()
	r.NoError(err)
	r.NotEqual(first, third)
}
