package searchdata

// Shard layout constants
const (
	// VarName is the binding the search widget reads from every shard
	VarName = "searchData"

	// RelativePrefix is prepended to document URLs (shards live one level below the HTML pages)
	RelativePrefix = "../"

	// SectionIndexFile lists, per section, the bucket characters that have a shard
	SectionIndexFile = "searchdata.js"

	// VersionFile is written into the shard directory by every build
	VersionFile = ".index_version"

	// IndexSchemaVersion increments when key derivation, grouping or shard layout changes
	// v1: single "all" section, v2: per-section shards with searchdata.js
	IndexSchemaVersion = 2
)
