package handler

import "net/http"

// PublicConfig is what the UI needs to render network and branding.
type PublicConfig struct {
	AppName            string `json:"app_name"`
	AppDescription     string `json:"app_description"`
	NetworkName        string `json:"network_name"`
	ChainID            string `json:"chain_id"`
	ChainIDDecimal     uint64 `json:"chain_id_decimal"`
	CurrencyName       string `json:"currency_name"`
	CurrencySymbol     string `json:"currency_symbol"`
	Decimals           int    `json:"decimals"`
	RPCURL             string `json:"rpc_url"`
	ExplorerURL        string `json:"explorer_url,omitempty"`
	MarketplaceAddress string `json:"marketplace_address"`
	DefaultCategory    string `json:"default_category"`
	GasLimit           uint64 `json:"gas_limit"`
}

// ConfigHandler serves the public configuration.
type ConfigHandler struct {
	cfg PublicConfig
}

// NewConfigHandler creates a ConfigHandler.
func NewConfigHandler(cfg PublicConfig) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetConfig returns the public configuration.
// GET /api/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg)
}
