package discovery

import (
	"fmt"
	"os"
	"strings"
)

// Domain is the mDNS domain every service lives in.
const Domain = "local."

// TxtMachineName is the TXT property carrying the advertising machine's name.
const TxtMachineName = "machineName"

// SearchProfile names a service type to discover.
type SearchProfile struct {
	// ServiceType is the DNS-SD service label, e.g. "_myservice"
	ServiceType string

	// Protocol is the transport, "tcp" or "udp" (a leading underscore is accepted)
	Protocol string

	// AllowSelf keeps hosts whose name matches this machine
	AllowSelf bool
}

// Key returns the routing key "_service._proto" for the profile.
func (p SearchProfile) Key() string {
	return ServiceKey(p.ServiceType, p.Protocol)
}

// Validate checks the service type and protocol.
func (p SearchProfile) Validate() error {
	if err := validateServiceLabel(p.ServiceType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	switch normalizeProtocol(p.Protocol) {
	case "tcp", "udp":
	default:
		return fmt.Errorf("%w: protocol %q must be tcp or udp", ErrInvalidProfile, p.Protocol)
	}
	return nil
}

func (p SearchProfile) String() string {
	if p.AllowSelf {
		return p.Key() + " (self allowed)"
	}
	return p.Key()
}

// ParseSearchProfile parses "_service._tcp" (optionally suffixed with ".local.").
func ParseSearchProfile(s string) (SearchProfile, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(s), "."), ".local")
	service, proto, ok := strings.Cut(trimmed, ".")
	if !ok {
		return SearchProfile{}, fmt.Errorf("%w: %q is not of the form _service._proto", ErrInvalidProfile, s)
	}
	p := SearchProfile{ServiceType: service, Protocol: proto}
	if err := p.Validate(); err != nil {
		return SearchProfile{}, err
	}
	return p, nil
}

// ServiceKey builds the canonical "_service._proto" routing key.
func ServiceKey(serviceType, protocol string) string {
	return strings.ToLower(serviceType) + "._" + normalizeProtocol(protocol)
}

func normalizeProtocol(protocol string) string {
	return strings.ToLower(strings.TrimPrefix(protocol, "_"))
}

func validateServiceLabel(label string) error {
	if len(label) < 2 || label[0] != '_' {
		return fmt.Errorf("service type %q must start with an underscore", label)
	}
	if len(label) > 63 {
		return fmt.Errorf("service type %q exceeds 63 characters", label)
	}
	for _, r := range label[1:] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return fmt.Errorf("service type %q contains invalid character %q", label, r)
		}
	}
	return nil
}

// InstanceProperties describes the service instance this process advertises.
type InstanceProperties struct {
	InstanceName string
	ServiceType  string
	Protocol     string
	Port         uint16
}

// Validate checks that the properties can be advertised.
func (p InstanceProperties) Validate() error {
	if strings.TrimSpace(p.InstanceName) == "" {
		return fmt.Errorf("%w: instance name is empty", ErrInvalidProfile)
	}
	if p.Port == 0 {
		return fmt.Errorf("%w: port must be non-zero", ErrInvalidProfile)
	}
	return p.SearchProfile().Validate()
}

// SearchProfile returns the profile matching the advertised service type.
// Self matches are never allowed for it.
func (p InstanceProperties) SearchProfile() SearchProfile {
	return SearchProfile{ServiceType: p.ServiceType, Protocol: p.Protocol}
}

// ServiceProfile is what gets handed to the engine for advertisement.
type ServiceProfile struct {
	InstanceName string
	Service      string // "_service._proto"
	Domain       string
	Port         uint16
	Text         []string
}

// NewServiceProfile builds the advertised profile, tagging it with machineName.
func NewServiceProfile(props InstanceProperties, machineName string) *ServiceProfile {
	return &ServiceProfile{
		InstanceName: props.InstanceName,
		Service:      props.SearchProfile().Key(),
		Domain:       Domain,
		Port:         props.Port,
		Text:         []string{TxtMachineName + "=" + machineName},
	}
}

// ID identifies the profile within an engine.
func (p *ServiceProfile) ID() string {
	return p.InstanceName + "." + p.Service + "." + p.Domain
}

// MachineName returns the short host name of this machine, or "localhost"
// when it cannot be determined.
func MachineName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	short, _, _ := strings.Cut(name, ".")
	return short
}
