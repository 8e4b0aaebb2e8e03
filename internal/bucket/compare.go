package bucket

import (
	"context"
	"sort"

	"github.com/edvin/mirrord/internal/model"
)

// Compare classifies every file key of the remote and local trees into
// exactly one of: missing in local, missing in bucket, matching, or
// different. Equality is size-only; contents are not hashed.
func (c *Client) Compare(ctx context.Context, bucketURL string, attrs map[string]string, localRoot string) (model.FileComparison, error) {
	cmp := model.FileComparison{
		MissingInLocal:  []model.FileInfo{},
		MissingInBucket: []model.FileInfo{},
		Different:       []model.FileInfo{},
		Matching:        []model.FileInfo{},
	}

	remoteTree, err := c.ListRemote(ctx, bucketURL, attrs)
	if err != nil {
		return cmp, err
	}
	localTree, err := c.ListLocal(localRoot)
	if err != nil {
		return cmp, err
	}

	remote := Flatten(remoteTree)
	local := Flatten(localTree)

	for _, key := range sortedKeys(remote) {
		rf := remote[key]
		lf, ok := local[key]
		switch {
		case !ok:
			cmp.MissingInLocal = append(cmp.MissingInLocal, rf)
		case rf.Size == lf.Size:
			cmp.Matching = append(cmp.Matching, rf)
		default:
			cmp.Different = append(cmp.Different, rf)
		}
	}
	for _, key := range sortedKeys(local) {
		if _, ok := remote[key]; !ok {
			cmp.MissingInBucket = append(cmp.MissingInBucket, local[key])
		}
	}

	return cmp, nil
}

func sortedKeys(m map[string]model.FileInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
