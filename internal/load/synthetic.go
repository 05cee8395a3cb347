package load

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// SyntheticSize is the number of records generated in demo mode.
const SyntheticSize = 100

var sampleCategories = []types.Category{
	{ID: 1, Name: "Film & Animation"},
	{ID: 2, Name: "Autos & Vehicles"},
	{ID: 10, Name: "Music"},
	{ID: 15, Name: "Pets & Animals"},
	{ID: 17, Name: "Sports"},
	{ID: 20, Name: "Gaming"},
	{ID: 22, Name: "People & Blogs"},
	{ID: 23, Name: "Comedy"},
	{ID: 24, Name: "Entertainment"},
	{ID: 25, Name: "News & Politics"},
	{ID: 26, Name: "Howto & Style"},
	{ID: 28, Name: "Science & Technology"},
}

// SyntheticRecords generates n plausible raw records extracted at now. The
// output is deterministic for a given batch id.
func SyntheticRecords(batchID string, now time.Time, n int) map[int][]types.RawRecord {
	h := fnv.New64a()
	_, _ = h.Write([]byte(batchID))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x76696474))

	out := make(map[int][]types.RawRecord)
	for i := range n {
		cat := sampleCategories[rng.IntN(len(sampleCategories))]
		channel := rng.IntN(10)
		hoursAgo := 24 + rng.IntN(24*29)
		views := int64(10_000 + rng.IntN(990_000))
		likes := int64(float64(views) * (0.01 + 0.19*rng.Float64()))
		comments := int64(float64(views) * (0.001 + 0.049*rng.Float64()))
		seconds := 60 + rng.IntN(3540)
		tags, _ := json.Marshal([]string{"tag0", "tag1", "tag2"})

		out[cat.ID] = append(out[cat.ID], types.RawRecord{
			types.FieldVideoID:      fmt.Sprintf("sample_%s_%d", batchID, i),
			types.FieldTitle:        fmt.Sprintf("Sample Video %d - %s #tag%d", i, cat.Name, i%5),
			types.FieldChannelID:    fmt.Sprintf("channel_%d", channel),
			types.FieldChannelTitle: fmt.Sprintf("Sample Channel %d", channel),
			types.FieldCategoryID:   cat.ID,
			types.FieldCategoryName: cat.Name,
			types.FieldPublishTime:  now.Add(-time.Duration(hoursAgo) * time.Hour).UTC().Format(time.RFC3339),
			types.FieldExtractedAt:  now.UTC().Format(time.RFC3339),
			types.FieldViewCount:    views,
			types.FieldLikeCount:    likes,
			types.FieldCommentCount: comments,
			types.FieldDuration:     fmt.Sprintf("PT%dM%dS", seconds/60, seconds%60),
			types.FieldTags:         string(tags),
			types.FieldDescription:  fmt.Sprintf("Generated sample #popular%d", i%3),
		})
	}
	return out
}
