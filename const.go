package match

const (
	// EngineVersion is the current version of the matching engine
	EngineVersion = "v1.0.0"

	// SnapshotSchemaVersion is the version of the BookSnapshot layout.
	// Increment this when the snapshot format changes in a backward-incompatible way
	SnapshotSchemaVersion = 1

	// defaultRingSize is the command ring capacity of an Engine. Must be a power of 2.
	defaultRingSize = 1 << 15
)
