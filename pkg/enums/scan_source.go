package enums

// ScanSource identifies what produced a location sample.
type ScanSource string

const (
	ScanSourceNFC    ScanSource = "nfc"
	ScanSourceQR     ScanSource = "qr"
	ScanSourceGPS    ScanSource = "gps"
	ScanSourceManual ScanSource = "manual"
)

var validScanSources = []ScanSource{
	ScanSourceNFC,
	ScanSourceQR,
	ScanSourceGPS,
	ScanSourceManual,
}

func (s ScanSource) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known ScanSource.
func (s ScanSource) IsValid() bool {
	return contains(validScanSources, s)
}

// ParseScanSource converts raw input into a ScanSource.
func ParseScanSource(value string) (ScanSource, error) {
	return parse(validScanSources, value, "scan source")
}
