package governor

import (
	"fmt"
	"runtime"
)

var (
	// CurrentVersion is the release tag, set with -ldflags at build time.
	CurrentVersion = "v0.1.0"

	CurrentBranch = ""

	CurrentCommit = ""

	BuildDate = ""

	Platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)

	GoVersion = runtime.Version()
)
