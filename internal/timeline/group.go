package timeline

import (
	"sort"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

// Group is a maximal run of consecutive activities resolving to one commit.
// Activities[Start:End] of the input slice is the run.
type Group struct {
	CommitID       string
	Representative model.Activity
	Start          int
	End            int
}

// GroupByCommit walks activities once and starts a new group whenever the
// resolved commit differs from the previous activity's. Repeats that are not
// adjacent stay in separate groups.
//
// activities must be sorted by descending id, which is the order the server
// returns them in; see SortForGrouping.
func GroupByCommit(index *Index, activities []model.Activity) []Group {
	var groups []Group
	for i, a := range activities {
		commit := index.NearestAtOrBefore(a.CreatedDate)
		if n := len(groups); n > 0 && groups[n-1].CommitID == commit {
			groups[n-1].End = i + 1
			continue
		}
		groups = append(groups, Group{
			CommitID:       commit,
			Representative: a,
			Start:          i,
			End:            i + 1,
		})
	}
	return groups
}

// SortedForGrouping reports whether activities satisfy the GroupByCommit
// ordering precondition.
func SortedForGrouping(activities []model.Activity) bool {
	return sort.SliceIsSorted(activities, func(i, j int) bool {
		return activities[i].ID > activities[j].ID
	})
}

// SortForGrouping sorts activities in place by descending id.
func SortForGrouping(activities []model.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].ID > activities[j].ID
	})
}
