package supplier

import (
	"regexp"

	"github.com/igniter-labs/igniterx/pkg/pocket"
)

// DefaultEndpointURL is used for service endpoints without their own template.
const DefaultEndpointURL = "{scheme}://{sid}-{protocol}.{rm}.{region}.{domain}"

// URLParams are the values substituted into endpoint URL templates.
type URLParams struct {
	ServiceID  string
	RelayMiner string
	Region     string
	Domain     string
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

func SchemeForRPCType(t pocket.RPCType) string {
	switch t {
	case pocket.RPCTypeGRPC:
		return "grpcs"
	case pocket.RPCTypeWebsocket:
		return "wss"
	default:
		return "https"
	}
}

func ProtocolToken(t pocket.RPCType) string {
	switch t {
	case pocket.RPCTypeREST:
		return "rest"
	case pocket.RPCTypeGRPC:
		return "grpc"
	case pocket.RPCTypeWebsocket:
		return "ws"
	default:
		return "json"
	}
}

// EndpointURL interpolates {sid}, {rm}, {region}, {domain}, {protocol} and {scheme} in
// template. Unknown or empty placeholders are left as written.
func EndpointURL(template string, rpcType pocket.RPCType, p URLParams) string {
	if template == "" {
		template = DefaultEndpointURL
	}
	values := map[string]string{
		"sid":      p.ServiceID,
		"rm":       p.RelayMiner,
		"region":   p.Region,
		"domain":   p.Domain,
		"protocol": ProtocolToken(rpcType),
		"scheme":   SchemeForRPCType(rpcType),
	}
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v := values[key]; v != "" {
			return v
		}
		return m
	})
}
