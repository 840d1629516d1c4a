package provider

const SettingsTableName = "application_settings"

// ApplicationSettings is the read-only configuration passed to every reconciliation call.
type ApplicationSettings struct {
	ChainID                 string `json:"chain_id"`
	MinimumStake            int64  `json:"minimum_stake"`
	MinimumOperationalFunds int64  `json:"minimum_operational_funds"`
	ProviderIdentity        string `json:"provider_identity"`
}
