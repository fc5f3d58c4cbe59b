package abi

import (
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// DependentField is a (name, Type) pair the compiler has decided to
// commit to on the output stack, because the method body reads or
// writes it, or because it is named by an authorization directive.
type DependentField struct {
	Name string
	Type Type
}

// Descriptor is the ABI record persisted alongside a compiled program's
// ISA text, so a driver can assemble inputs and decode outputs without
// re-running the compiler.
type Descriptor struct {
	StdVersion string // e.g. "v0.4.2"; see CheckVersion

	ThisAddr *uint32
	ThisType *Type

	ResultAddr *uint32
	ResultType *Type

	Parameters []Type

	ForeignCollections      []string
	ForeignCollectionTypes  map[string]Type
	DependentFields         []DependentField
}

// CheckVersion reports whether a Descriptor produced by compiler version
// producedBy may be consumed by a runtime built against wantVersion. Both
// must be valid semver; the driver uses this to refuse running ISA text
// emitted by an incompatible compiler build rather than failing deep
// inside advice-tape decoding.
func CheckVersion(producedBy, wantVersion string) error {
	if !semver.IsValid(producedBy) {
		return errors.Errorf("abi: descriptor std_version %q is not valid semver", producedBy)
	}
	if !semver.IsValid(wantVersion) {
		return errors.Errorf("abi: requested version %q is not valid semver", wantVersion)
	}
	if semver.Major(producedBy) != semver.Major(wantVersion) {
		return errors.Errorf("abi: incompatible std library version: program built against %s, runtime wants %s", producedBy, wantVersion)
	}
	return nil
}
