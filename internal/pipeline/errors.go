// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

package pipeline

import "fmt"

// PartialRunError reports that some combinations failed while the run as
// a whole still produced and published a snapshot. The CLI exits non-zero
// on it so schedulers notice degraded runs.
type PartialRunError struct {
	Failed int
}

func (e *PartialRunError) Error() string {
	return fmt.Sprintf("run completed with %d failed combinations", e.Failed)
}
