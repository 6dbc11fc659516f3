package classify

import (
	"strings"

	"IoTSpectra/internal/model"
)

// vendorPatterns maps known vendors to the substrings that identify them in
// DHCP vendor-class strings, hostnames, and HTTP user agents.
var vendorPatterns = []struct {
	vendor   model.Vendor
	patterns []string
}{
	{model.VendorHikvision, []string{"hikvision", "hik-connect", "ds-2cd"}},
	{model.VendorNest, []string{"nest", "google-nest"}},
	{model.VendorAmazon, []string{"amazon", "echo", "alexa", "fireos"}},
	{model.VendorPhilips, []string{"philips", "hue"}},
	{model.VendorAugust, []string{"august", "augustlock"}},
	{model.VendorTPLink, []string{"tp-link", "tplink", "kasa"}},
	{model.VendorHP, []string{"hewlett", "hp-", "hplip", "laserjet", "officejet"}},
}

// typeVendorFallback maps a classified device type to the vendor most common
// for that type in the training corpus, used when no identity signal matches.
var typeVendorFallback = map[model.DeviceType]model.Vendor{
	model.DeviceCamera:     model.VendorHikvision,
	model.DeviceThermostat: model.VendorNest,
	model.DeviceSpeaker:    model.VendorAmazon,
	model.DeviceLight:      model.VendorPhilips,
	model.DeviceLock:       model.VendorAugust,
	model.DeviceRouter:     model.VendorTPLink,
	model.DevicePrinter:    model.VendorHP,
}

// InferVendor resolves the device vendor by fixed precedence: DHCP
// vendor-class match, then hostname match, then HTTP user-agent match, then a
// device-type-conditioned fallback, then Unknown.
func InferVendor(sig *model.FingerprintSignature, deviceType model.DeviceType) model.Vendor {
	for _, source := range []string{sig.DHCPVendorClass, sig.Hostname, sig.HTTPUserAgent} {
		if source == "" {
			continue
		}
		if v, ok := matchVendor(source); ok {
			return v
		}
	}
	if v, ok := typeVendorFallback[deviceType]; ok {
		return v
	}
	return model.VendorUnknown
}

func matchVendor(s string) (model.Vendor, bool) {
	s = strings.ToLower(s)
	for _, entry := range vendorPatterns {
		for _, p := range entry.patterns {
			if strings.Contains(s, p) {
				return entry.vendor, true
			}
		}
	}
	return model.VendorUnknown, false
}
