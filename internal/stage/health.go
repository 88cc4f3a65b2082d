package stage

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name    string
	Ready   bool
	Enabled bool
	Detail  string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true, Enabled: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Enabled: true, Detail: detail}
}

// Disabled constructs the record for a stage configuration turned off.
func Disabled(name string) Health {
	return Health{Name: name, Ready: true, Detail: "disabled"}
}
