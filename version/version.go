package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built software's version.
	Version string = AuctiondSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

// AuctiondSemVer is the current version of the auction daemon.
// It's the Semantic Version of the software.
const AuctiondSemVer = "0.1.0"
