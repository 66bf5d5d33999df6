package handlers

import (
	"net/http"

	"genkey/config"
	"genkey/internal/logger"
	"genkey/middleware"
)

// ConfigResponse holds the issuance defaults exposed to request forms.
type ConfigResponse struct {
	Defaults struct {
		OrganizationalUnit string `json:"organizationalUnit"`
		Location           string `json:"location"`
		Province           string `json:"province"`
		Country            string `json:"country"`
	} `json:"defaults"`
	ValidityDays int  `json:"validityDays"`
	AuthRequired bool `json:"authRequired"`
}

// GetConfig returns the public part of the configuration.
func GetConfig(cfg config.Config) http.HandlerFunc {
	settings := cfg.IssuanceSettings()
	resp := ConfigResponse{ValidityDays: settings.ValidityDays, AuthRequired: cfg.AuthEnabled()}
	resp.Defaults.OrganizationalUnit = settings.Names.OrganizationalUnit
	resp.Defaults.Location = settings.Names.Location
	resp.Defaults.Province = settings.Names.Province
	resp.Defaults.Country = settings.Names.Country

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, resp)
		logger.HTTPEvent(r.Method, r.URL.Path, http.StatusOK, 0).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("config retrieved")
	}
}
