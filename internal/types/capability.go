package types

// Capability is the operation class a provider implements.
type Capability string

const (
	CapabilityTranslate Capability = "translate"
	CapabilityExtract   Capability = "ocr"
	CapabilityGenerate  Capability = "generate"
)

func ParseCapability(s string) (Capability, bool) {
	switch Capability(s) {
	case CapabilityTranslate, CapabilityExtract, CapabilityGenerate:
		return Capability(s), true
	default:
		return "", false
	}
}

func (c Capability) String() string { return string(c) }

// Capabilities lists every capability in stable order.
func Capabilities() []Capability {
	return []Capability{CapabilityTranslate, CapabilityExtract, CapabilityGenerate}
}
