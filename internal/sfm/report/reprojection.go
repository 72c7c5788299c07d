// Package report renders post-reconstruction diagnostics: a
// reprojection-error histogram (a go-echarts chart) and a
// top-down camera/point layout (gonum/plot, rendered as an image).
// Neither feeds back into the core pipeline; both are read-only views
// over a finished SceneStructure, intended for debugging a
// reconstruction attempt that converged to a suspicious result.
package report

import (
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/kernels"
	"github.com/viewgraph-sfm/trifocal-init/internal/sfm/structure"
)

// ReprojectionError computes, for one observation, the Euclidean pixel
// distance between its recorded pixel and the camera's projection of
// its 3D point.
func ReprojectionError(ss *structure.SceneStructure, obs kernels.BAObservation) (float64, bool) {
	if obs.ViewSlot < 0 || obs.ViewSlot >= len(ss.Views) {
		return 0, false
	}
	if obs.PointIndex < 0 || obs.PointIndex >= len(ss.Points) {
		return 0, false
	}

	cam := ss.Views[obs.ViewSlot].Camera
	if cam == nil {
		return 0, false
	}

	var proj [3]float64
	pt := ss.Points[obs.PointIndex]
	for r := 0; r < 3; r++ {
		var sum float64
		for c := 0; c < 4; c++ {
			sum += cam.At(r, c) * pt.AtVec(c)
		}
		proj[r] = sum
	}
	if proj[2] == 0 {
		return 0, false
	}

	u, v := proj[0]/proj[2], proj[1]/proj[2]
	dx, dy := u-obs.X, v-obs.Y
	return math.Sqrt(dx*dx + dy*dy), true
}

// ReprojectionHistogram builds a go-echarts bar chart bucketing every
// observation's reprojection error into bins of bucketWidth pixels
// (0.1 when bucketWidth <= 0); observations whose error cannot be
// computed are left out.
func ReprojectionHistogram(ss *structure.SceneStructure, observations []kernels.BAObservation, bucketWidth float64) *charts.Bar {
	if bucketWidth <= 0 {
		bucketWidth = 0.1
	}

	buckets := make(map[int]int)
	maxBucket := 0
	for _, o := range observations {
		err, ok := ReprojectionError(ss, o)
		if !ok {
			continue
		}
		b := int(err / bucketWidth)
		buckets[b]++
		if b > maxBucket {
			maxBucket = b
		}
	}

	labels := make([]string, maxBucket+1)
	counts := make([]opts.BarData, maxBucket+1)
	for b := 0; b <= maxBucket; b++ {
		labels[b] = fmt.Sprintf("%.2f", float64(b)*bucketWidth)
		counts[b] = opts.BarData{Value: buckets[b]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Reprojection error",
			Subtitle: fmt.Sprintf("attempt %s, %d observations", ss.AttemptID, len(observations)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "pixels"}),
	)
	bar.SetXAxis(labels).AddSeries("count", counts)

	return bar
}
