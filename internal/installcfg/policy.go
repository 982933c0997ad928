package installcfg

// CollisionPolicy defines how the installer treats a file that already
// exists at the destination. Values: "overwrite" | "skip" | "error".
type CollisionPolicy string

const (
	CollisionOverwrite CollisionPolicy = "overwrite"
	CollisionSkip      CollisionPolicy = "skip"
	CollisionError     CollisionPolicy = "error"
)

// Options carries installer settings resolved from configuration.
type Options struct {
	Policy CollisionPolicy
	// InstallLoader gates installation of the loader framework package.
	InstallLoader bool
	// StagingName is the per-game directory the loader tree is assembled in.
	StagingName string
	// PluginsPath is where ordinary mods land, relative to the staging dir.
	PluginsPath string
}

// DefaultOptions mirror a stock BepInEx layout.
func DefaultOptions() Options {
	return Options{
		Policy:        CollisionOverwrite,
		InstallLoader: true,
		StagingName:   "BepInEx-install",
		PluginsPath:   "BepInEx/plugins",
	}
}

// ParseCollisionPolicy converts a string to a CollisionPolicy with default.
func ParseCollisionPolicy(s string) CollisionPolicy {
	switch CollisionPolicy(s) {
	case CollisionSkip:
		return CollisionSkip
	case CollisionError:
		return CollisionError
	case CollisionOverwrite:
		fallthrough
	default:
		return CollisionOverwrite
	}
}
