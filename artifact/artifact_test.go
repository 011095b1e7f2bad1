package artifact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/appmodel/artifact"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    artifact.Coordinate
		wantStr string
		wantErr bool
	}{
		{
			name:    "group artifact version",
			in:      "org.acme:lib-a:1.0",
			want:    artifact.Coordinate{GroupID: "org.acme", ArtifactID: "lib-a", Type: "jar", Version: "1.0"},
			wantStr: "org.acme:lib-a:1.0",
		},
		{
			name:    "with type",
			in:      "org.acme:bom:pom:2",
			want:    artifact.Coordinate{GroupID: "org.acme", ArtifactID: "bom", Type: "pom", Version: "2"},
			wantStr: "org.acme:bom::pom:2",
		},
		{
			name:    "with classifier and type",
			in:      "org.acme:lib-a:tests:jar:1.0",
			want:    artifact.Coordinate{GroupID: "org.acme", ArtifactID: "lib-a", Classifier: "tests", Type: "jar", Version: "1.0"},
			wantStr: "org.acme:lib-a:tests:jar:1.0",
		},
		{name: "too short", in: "org.acme", wantErr: true},
		{name: "missing group", in: ":lib-a:1.0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			got, err := artifact.ParseCoordinate(tt.in)
			if tt.wantErr {
				r.Error(err)
				return
			}
			r.NoError(err)
			r.Equal(tt.want, got)
			r.Equal(tt.wantStr, got.String())
		})
	}
}

func TestKeyIdentity(t *testing.T) {
	r := require.New(t)

	plain := artifact.MustParseCoordinate("org.acme:lib-a:1.0")
	other := artifact.MustParseCoordinate("org.acme:lib-a:2.0")
	tests := artifact.MustParseCoordinate("org.acme:lib-a:tests:jar:1.0")
	pom := artifact.MustParseCoordinate("org.acme:lib-a:pom:1.0")

	r.Equal(plain.Key(), other.Key(), "versions do not change identity")
	r.NotEqual(plain.Key(), tests.Key(), "classifier variants are distinct artifacts")
	r.NotEqual(plain.Key(), pom.Key(), "type variants are distinct artifacts")
	r.Equal(artifact.NewKey("org.acme", "lib-a"), artifact.Coordinate{GroupID: "org.acme", ArtifactID: "lib-a"}.Key())

	k, err := artifact.ParseKey("org.acme:lib-a")
	r.NoError(err)
	r.Equal(plain.Key(), k)
	r.Equal("org.acme:lib-a", k.String())
	r.Equal("org.acme:lib-a:tests:jar", tests.Key().String())
	r.Negative(plain.Key().Compare(tests.Key()))
}

func TestExclusions(t *testing.T) {
	a := assert.New(t)

	lib := artifact.NewKey("org.acme", "lib-a")
	a.True(artifact.Exclusion{GroupID: "org.acme", ArtifactID: "lib-a"}.Matches(lib))
	a.True(artifact.Exclusion{GroupID: "*", ArtifactID: "lib-a"}.Matches(lib))
	a.True(artifact.Exclusion{GroupID: "org.acme", ArtifactID: "*"}.Matches(lib))
	a.False(artifact.Exclusion{GroupID: "org.other", ArtifactID: "lib-a"}.Matches(lib))
	a.True(artifact.Exclusion{GroupID: "org.acme", ArtifactID: "lib-a"}.Matches(artifact.Key{GroupID: "org.acme", ArtifactID: "lib-a", Classifier: "tests", Type: "jar"}))

	base := artifact.Exclusions{{GroupID: "g", ArtifactID: "a"}}
	merged := base.Union(artifact.Exclusions{{GroupID: "g", ArtifactID: "a"}, {GroupID: "g", ArtifactID: "b"}})
	a.Len(base, 1)
	a.Len(merged, 2)
	a.True(merged.Excludes(artifact.NewKey("g", "b")))
	a.False(base.Excludes(artifact.NewKey("g", "b")))

	common := merged.Intersect(artifact.Exclusions{{GroupID: "g", ArtifactID: "b"}, {GroupID: "g", ArtifactID: "c"}})
	a.Equal(artifact.Exclusions{{GroupID: "g", ArtifactID: "b"}}, common)
	a.Empty(base.Intersect(nil))
	a.True(base.SubsetOf(merged))
	a.False(merged.SubsetOf(base))
	a.True(artifact.Exclusions(nil).SubsetOf(base))

	ex, err := artifact.ParseExclusion("g:*")
	a.NoError(err)
	a.Equal(artifact.Exclusion{GroupID: "g", ArtifactID: "*"}, ex)
	_, err = artifact.ParseExclusion("g")
	a.Error(err)

	pattern, err := artifact.ParseExclusion("org.acme.*:lib-?")
	a.NoError(err)
	a.True(pattern.Matches(artifact.NewKey("org.acme.web", "lib-a")))
	a.False(pattern.Matches(artifact.NewKey("org.acme", "lib-a")), "the group pattern needs a sub group")
	a.False(pattern.Matches(artifact.NewKey("org.acme.web", "lib-ab")))
}

func TestScope(t *testing.T) {
	a := assert.New(t)
	a.True(artifact.Scope("").Transitive())
	a.True(artifact.ScopeRuntime.Transitive())
	a.False(artifact.ScopeProvided.Transitive())
	a.False(artifact.ScopeTest.Transitive())
	a.False(artifact.Scope("system").Valid())
}
