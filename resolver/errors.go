package resolver

import (
	"errors"
	"fmt"
	"strings"

	"ocm.software/open-component-model/appmodel/artifact"
)

var (
	ErrInvalidRequest = errors.New("invalid resolution request")
	ErrInvariant      = errors.New("resolver invariant violated")
)

func formatChain(chain []artifact.Coordinate) string {
	parts := make([]string, len(chain))
	for i, c := range chain {
		parts[i] = c.String()
	}
	return strings.Join(parts, " -> ")
}

// MissingArtifactError is returned when a required artifact is unknown to the
// metadata provider.
type MissingArtifactError struct {
	Coordinate artifact.Coordinate
	// Chain lists the requesting artifacts, starting at the application.
	Chain []artifact.Coordinate
	Err   error
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("required artifact %s could not be resolved (requested by %s): %v", e.Coordinate, formatChain(e.Chain), e.Err)
}

func (e *MissingArtifactError) Unwrap() error {
	return e.Err
}

// UnsatisfiedConditionError is returned when a required dependency points at
// an extension whose dependency condition never becomes true.
type UnsatisfiedConditionError struct {
	Extension artifact.Coordinate
	Unmet     []artifact.Key
	Chain     []artifact.Coordinate
}

func (e *UnsatisfiedConditionError) Error() string {
	unmet := make([]string, len(e.Unmet))
	for i, k := range e.Unmet {
		unmet[i] = k.String()
	}
	return fmt.Sprintf("extension %s is required by %s but its dependency condition is not satisfied, missing %s",
		e.Extension, formatChain(e.Chain), strings.Join(unmet, ", "))
}

// UnresolvedPropertyError is returned for ${name} placeholders without a value.
type UnresolvedPropertyError struct {
	Property string
	Value    string
	Artifact artifact.Coordinate
}

func (e *UnresolvedPropertyError) Error() string {
	return fmt.Sprintf("property %q used in %q by %s is not defined", e.Property, e.Value, e.Artifact)
}

// NoMatchingVersionError is returned for version ranges no available version satisfies.
type NoMatchingVersionError struct {
	Key         artifact.Key
	Requirement string
	Available   []string
	From        artifact.Coordinate
}

func (e *NoMatchingVersionError) Error() string {
	return fmt.Sprintf("no version of %s requested by %s satisfies %s (available: %s)",
		e.Key, e.From, e.Requirement, strings.Join(e.Available, ", "))
}

// InvalidDependencyError is returned for dependency declarations that cannot be resolved at all.
type InvalidDependencyError struct {
	From       artifact.Coordinate
	Dependency artifact.Key
	Reason     string
}

func (e *InvalidDependencyError) Error() string {
	return fmt.Sprintf("invalid dependency %s declared by %s: %s", e.Dependency, e.From, e.Reason)
}

// InvalidDeploymentArtifactError is returned for extensions whose deployment
// artifact is not declared or does not depend on the runtime artifact.
type InvalidDeploymentArtifactError struct {
	Extension  artifact.Coordinate
	Deployment artifact.Coordinate
	Reason     string
}

func (e *InvalidDeploymentArtifactError) Error() string {
	if e.Deployment.IsZero() {
		return fmt.Sprintf("extension %s: %s", e.Extension, e.Reason)
	}
	return fmt.Sprintf("deployment artifact %s of extension %s: %s", e.Deployment, e.Extension, e.Reason)
}

// MissingCapabilityError is returned when an activated extension requires a
// capability no activated extension provides.
type MissingCapabilityError struct {
	Extension  artifact.Coordinate
	Capability string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("extension %s requires capability %q which is not provided by any extension of the application", e.Extension, e.Capability)
}

// InvariantViolationError reports an inconsistent graph during assembly. It
// indicates a defect in the resolver, not in the input.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "assembling application model: " + e.Reason
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariant
}
