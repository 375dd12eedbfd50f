// Package timeline resolves pull request activity to the commit that was the
// head of the pull request when the activity happened.
package timeline

import (
	"sort"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

// BlankCommitID stands for "no commit existed yet at this time".
const BlankCommitID = "0000000000000000000000000000000000000000"

type point struct {
	timestamp int64
	id        string
}

// Index maps author timestamps to commit ids. Committer timestamps are
// ignored; rebases rewrite them and would move activity onto the wrong
// commit.
type Index struct {
	points []point // ascending by timestamp, unique timestamps
}

// New builds an Index from a pull request's commit list. The list comes from
// the server newest first; when two commits share an author timestamp the
// one later in the list wins.
func New(commits []model.Commit) *Index {
	byTime := make(map[int64]string, len(commits))
	for _, c := range commits {
		byTime[c.AuthorTimestamp] = c.ID
	}
	points := make([]point, 0, len(byTime))
	for ts, id := range byTime {
		points = append(points, point{timestamp: ts, id: id})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].timestamp < points[j].timestamp })
	return &Index{points: points}
}

// NearestAtOrBefore returns the id of the commit with the greatest author
// timestamp not after ts, or BlankCommitID when ts precedes every commit.
func (x *Index) NearestAtOrBefore(ts int64) string {
	i := sort.Search(len(x.points), func(i int) bool { return x.points[i].timestamp > ts })
	if i == 0 {
		return BlankCommitID
	}
	return x.points[i-1].id
}
