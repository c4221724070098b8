package syncer

import "time"

// timeNow is a package-level variable for testability.
// Tests can replace this to control progress-table dates.
var timeNow = time.Now
