package cloud

// loginRequest is the body posted to the auth endpoint
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Version  string `json:"version"`
}

// loginResponse carries the bearer token issued for the account
type loginResponse struct {
	Tokens struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	} `json:"tokens"`
}

type structuresResponse struct {
	Structures []string `json:"structures"`
}

// Structure is one Link Plus installation (a home) and the devices paired
// with it.
type Structure struct {
	ID      string   `json:"groupId"`
	Name    string   `json:"name"`
	Devices []Device `json:"devices"`
}

// Device is a physical LightwaveRF product paired to a Link Plus hub
type Device struct {
	ID          string       `json:"deviceId"`
	Name        string       `json:"name"`
	ProductCode string       `json:"productCode"`
	Product     string       `json:"product"`
	FeatureSets []FeatureSet `json:"featureSets"`
}

// FeatureSet groups the features of one channel of a device, e.g. one
// gang of a two-gang dimmer.
type FeatureSet struct {
	ID       string    `json:"featureSetId"`
	Name     string    `json:"name"`
	Features []Feature `json:"features"`
}

// Feature is a single readable (and possibly writable) channel.
// Type names match state.ChannelKind names.
type Feature struct {
	ID       string `json:"featureId"`
	Type     string `json:"type"`
	Writable bool   `json:"writable"`
}

// FeatureInfo is a flattened Feature with the names of the device and
// feature set it belongs to.
type FeatureInfo struct {
	Feature
	DeviceID   string
	DeviceName string
	SetName    string
}

// Features flattens the structure into one entry per feature.
func (s *Structure) Features() []FeatureInfo {
	var out []FeatureInfo
	for _, d := range s.Devices {
		for _, fs := range d.FeatureSets {
			for _, f := range fs.Features {
				out = append(out, FeatureInfo{
					Feature:    f,
					DeviceID:   d.ID,
					DeviceName: d.Name,
					SetName:    fs.Name,
				})
			}
		}
	}
	return out
}

type featureRef struct {
	FeatureID string `json:"featureId"`
}

type readFeaturesRequest struct {
	Features []featureRef `json:"features"`
}
