package strapi

import "sync"

// VersionDetector memoizes the wire format of one client session. Only a
// confident detection is cached: an ambiguous body leaves the memo untouched
// so a later unambiguous response can still settle it.
type VersionDetector struct {
	mutex      sync.RWMutex
	configured APIVersion
	detected   APIVersion
}

// NewVersionDetector creates a detector. A configured v4 or v5 disables
// detection entirely.
func NewVersionDetector(configured APIVersion) *VersionDetector {
	if configured != VersionV4 && configured != VersionV5 {
		configured = VersionUnknown
	}

	return &VersionDetector{configured: configured}
}

// Observe inspects a response body and caches a confident detection.
func (d *VersionDetector) Observe(body map[string]interface{}) APIVersion {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.configured != VersionUnknown {
		return d.configured
	}

	if d.detected != VersionUnknown {
		return d.detected
	}

	detected := DetectVersion(body)
	if detected != VersionUnknown {
		d.detected = detected
	}

	return detected
}

// Current returns the configured or cached version, or VersionUnknown.
func (d *VersionDetector) Current() APIVersion {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if d.configured != VersionUnknown {
		return d.configured
	}

	return d.detected
}

// Effective returns the version to parse with: the current one, or v4 while
// nothing has been detected.
func (d *VersionDetector) Effective() APIVersion {
	current := d.Current()
	if current == VersionUnknown {
		return VersionV4
	}

	return current
}

// Reset forgets the detected version. A configured version is kept.
func (d *VersionDetector) Reset() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.detected = VersionUnknown
}
