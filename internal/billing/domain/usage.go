package billing

// UsageClass selects which rate schedule applies to a consumer.
type UsageClass string

const (
	UsageResidential UsageClass = "Residential"
	UsageCommercial  UsageClass = "Commercial"
)

// NormalizeUsageClass validates a usage class string.
func NormalizeUsageClass(value string) (UsageClass, bool) {
	switch UsageClass(value) {
	case UsageResidential, UsageCommercial:
		return UsageClass(value), true
	default:
		return "", false
	}
}
