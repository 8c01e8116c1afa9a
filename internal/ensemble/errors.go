package ensemble

import "errors"

// ErrStaleHandle is returned by mutating operations that were handed a
// handle whose record has since been consumed or moved. Callers that
// validated first never see it; seeing it means a missing validity check.
var ErrStaleHandle = errors.New("stale ensemble handle")
