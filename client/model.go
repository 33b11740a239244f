package client

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Product identifies a downloadable product line.
type Product string

const (
	ProductHoudini         Product = "houdini"
	ProductHoudiniLauncher Product = "houdini-launcher"
)

// Platform identifies a build's target platform.
type Platform string

const (
	PlatformLinux      Platform = "linux"
	PlatformWin64      Platform = "win64"
	PlatformMacos      Platform = "macos"
	PlatformMacosArm64 Platform = "macosx_arm64"
)

// BuildQuery describes one daily-builds listing request. Version is
// optional; when empty it is omitted from the request so the service
// returns builds across all versions.
type BuildQuery struct {
	Product        Product  `json:"product" validate:"required,oneof=houdini houdini-launcher"`
	Platform       Platform `json:"platform" validate:"required,oneof=linux win64 macos macosx_arm64"`
	Version        string   `json:"version,omitempty" validate:"omitempty,version"`
	OnlyProduction bool     `json:"only_production"`
}

// BuildRecord is one entry of the daily-builds list. Status is an open
// set: the service may introduce values beyond "good" and "bad", so
// unknown statuses pass through untouched.
type BuildRecord struct {
	Build    BuildNumber `json:"build"`
	Date     string      `json:"date"`
	Product  Product     `json:"product"`
	Platform string      `json:"platform"`
	Release  string      `json:"release"`
	Status   string      `json:"status"`
	Version  string      `json:"version"`
}

// FullVersion returns the dotted "version.build" form, e.g. "20.5.445".
func (b BuildRecord) FullVersion() string {
	return fmt.Sprintf("%s.%d", b.Version, uint64(b.Build))
}

// BuildNumber decodes from either a JSON number or a numeric string;
// the service is inconsistent about which form it sends.
type BuildNumber uint64

func (n *BuildNumber) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		var s string
		if serr := json.Unmarshal(data, &s); serr != nil {
			return fmt.Errorf("build number: %w", err)
		}
		num = json.Number(s)
	}

	v, err := strconv.ParseUint(num.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("build number %q is not a number", num.String())
	}

	*n = BuildNumber(v)

	return nil
}

// DownloadDescriptor locates one downloadable build archive. The URL
// is signed and short-lived, so descriptors are resolved per download
// and never cached. Hash is the hex MD5 of the archive's content.
type DownloadDescriptor struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	Hash        string `json:"hash"`
	Size        uint64 `json:"size"`
}
