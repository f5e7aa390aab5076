package dto

// SettingItem is one key-value pair in the admin settings readout.
type SettingItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UpdateSettingsRequest upserts a batch of settings for one company. Keys are
// validated against the allowed-key table; unknown names are rejected.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// CopySettingsRequest clones another company's settings (or the global
// defaults when FromCompanyID is zero).
type CopySettingsRequest struct {
	FromCompanyID int64 `json:"from_company_id" validate:"gte=0"`
}
