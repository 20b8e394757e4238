package enums

import "slices"

// DemoIdentityKind names the signal a demo usage row was keyed by.
type DemoIdentityKind string

const (
	DemoIdentityIP          DemoIdentityKind = "ip"
	DemoIdentityFingerprint DemoIdentityKind = "fp"
)

var demoIdentityKinds = []DemoIdentityKind{DemoIdentityIP, DemoIdentityFingerprint}

func (k DemoIdentityKind) String() string { return string(k) }

func (k DemoIdentityKind) IsValid() bool { return slices.Contains(demoIdentityKinds, k) }

func ParseDemoIdentityKind(value string) (DemoIdentityKind, error) {
	return parse("demo identity kind", demoIdentityKinds, value)
}
