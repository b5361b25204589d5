package domain

// ServiceDefinition is a named protocol preset selectable on user
// policies. Definitions with AllowCustomPorts false pin their declared
// ports: the rule's stored ports list is ignored at match time.
//
// The pinned-vs-custom tie-break mirrors the backend of record's
// editing behavior and is provisional until confirmed as a backend
// contract.
type ServiceDefinition struct {
	Name             string
	Transport        string // "tcp", "udp", or "" for any
	Ports            []string
	AllowCustomPorts bool
}

// Services is the catalog of selectable protocol presets.
var Services = map[string]ServiceDefinition{
	"All":        {Name: "All", AllowCustomPorts: false},
	"SSH":        {Name: "SSH", Transport: "tcp", Ports: []string{"22"}},
	"HTTP":       {Name: "HTTP", Transport: "tcp", Ports: []string{"80"}},
	"HTTPS":      {Name: "HTTPS", Transport: "tcp", Ports: []string{"443"}},
	"RDP":        {Name: "RDP", Transport: "tcp", Ports: []string{"3389"}},
	"DNS":        {Name: "DNS", Transport: "udp", Ports: []string{"53"}},
	"MySQL":      {Name: "MySQL", Transport: "tcp", Ports: []string{"3306"}},
	"PostgreSQL": {Name: "PostgreSQL", Transport: "tcp", Ports: []string{"5432"}},
	"Custom":     {Name: "Custom", AllowCustomPorts: true},
}

// LookupService resolves a protocol name from the catalog.
func LookupService(name string) (ServiceDefinition, bool) {
	svc, ok := Services[name]
	return svc, ok
}
