package classify

import (
	"testing"

	"IoTSpectra/internal/model"
)

func TestInferVendorPrecedence(t *testing.T) {
	cases := []struct {
		name string
		sig  model.FingerprintSignature
		typ  model.DeviceType
		want model.Vendor
	}{
		{
			name: "dhcp vendor class wins over hostname",
			sig: model.FingerprintSignature{
				DHCPVendorClass: "HIKVISION DS-2CD2042",
				Hostname:        "nest-thermostat",
			},
			typ:  model.DeviceCamera,
			want: model.VendorHikvision,
		},
		{
			name: "hostname wins over user agent",
			sig: model.FingerprintSignature{
				Hostname:      "philips-hue-bridge",
				HTTPUserAgent: "AmazonEcho/2.1",
			},
			typ:  model.DeviceLight,
			want: model.VendorPhilips,
		},
		{
			name: "user agent match",
			sig:  model.FingerprintSignature{HTTPUserAgent: "Mozilla/5.0 (compatible; TP-Link HTTPD)"},
			typ:  model.DeviceRouter,
			want: model.VendorTPLink,
		},
		{
			name: "case insensitive",
			sig:  model.FingerprintSignature{DHCPVendorClass: "AUGUSTLOCK-GEN3"},
			typ:  model.DeviceLock,
			want: model.VendorAugust,
		},
		{
			name: "falls back to type vendor",
			sig:  model.FingerprintSignature{Hostname: "device-17"},
			typ:  model.DevicePrinter,
			want: model.VendorHP,
		},
		{
			name: "unknown type and no signal",
			sig:  model.FingerprintSignature{},
			typ:  model.DeviceUnknown,
			want: model.VendorUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferVendor(&tc.sig, tc.typ); got != tc.want {
				t.Errorf("InferVendor = %v, want %v", got, tc.want)
			}
		})
	}
}
