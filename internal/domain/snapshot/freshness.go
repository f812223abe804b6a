package snapshot

// Reason names one failed freshness condition.
type Reason string

// Freshness conditions, in evaluation order.
const (
	ReasonArtifactMissing Reason = "artifact_missing"
	ReasonStampMissing    Reason = "stamp_missing"
	ReasonStampMismatch   Reason = "stamp_mismatch"
	ReasonManifestNewer   Reason = "manifest_newer_than_lock"
)

// Observation is what the cache looks like on disk at one point in time.
type Observation struct {
	// ArtifactExists reports whether the compiled tool is present.
	ArtifactExists bool
	// Stamp is the content of the stamp file; empty when absent or empty.
	Stamp string
	// Key is the compile key of the current sources.
	Key string
	// ManifestNewer reports whether the manifest is strictly newer than its lock.
	ManifestNewer bool
}

// Verdict is the freshness decision for an Observation.
type Verdict struct {
	// Key is the compile key a rebuild must record.
	Key string
	// Reasons lists every failed condition. Empty means fresh.
	Reasons []Reason
}

// Fresh reports whether the cached artifact may be launched as is.
func (v Verdict) Fresh() bool {
	return len(v.Reasons) == 0
}

// Evaluate decides freshness. All conditions are checked so that the verdict
// explains every reason for staleness.
func Evaluate(o Observation) Verdict {
	verdict := Verdict{Key: o.Key}

	if !o.ArtifactExists {
		verdict.Reasons = append(verdict.Reasons, ReasonArtifactMissing)
	}

	switch {
	case o.Stamp == "":
		verdict.Reasons = append(verdict.Reasons, ReasonStampMissing)
	case o.Stamp != o.Key:
		verdict.Reasons = append(verdict.Reasons, ReasonStampMismatch)
	}

	if o.ManifestNewer {
		verdict.Reasons = append(verdict.Reasons, ReasonManifestNewer)
	}

	return verdict
}

// CompileKey combines the source revision and the raw extra tool arguments.
// Without extra arguments the key is the revision itself.
func CompileKey(revision, toolArgs string) string {
	if toolArgs == "" {
		return revision
	}

	return revision + ":" + toolArgs
}
